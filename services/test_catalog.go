package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"psblearn/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TestCatalog owns the Test -> Question -> Option hierarchy. Student-facing
// reads return the Student* shapes, which have no correctness field at all.
type TestCatalog struct {
	db        *gorm.DB
	directory *DirectoryService
	cache     *catalogCache
}

func NewTestCatalog(db *gorm.DB, directory *DirectoryService, redisClient *redis.Client, cacheTTL time.Duration) *TestCatalog {
	return &TestCatalog{
		db:        db,
		directory: directory,
		cache:     &catalogCache{redis: redisClient, ttl: cacheTTL},
	}
}

type TestSummary struct {
	ID               uint    `json:"id"`
	Title            string  `json:"title"`
	Description      *string `json:"description"`
	TimeLimitMinutes *int    `json:"time_limit_minutes"`
}

type StudentOption struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

type StudentQuestion struct {
	ID         uint                `json:"id"`
	Text       string              `json:"text"`
	Type       models.QuestionType `json:"type"`
	OrderIndex int                 `json:"order_index"`
	Options    []StudentOption     `json:"options"`
}

type StudentTest struct {
	ID               uint              `json:"id"`
	CourseID         uint              `json:"course_id"`
	Title            string            `json:"title"`
	Description      *string           `json:"description"`
	TimeLimitMinutes *int              `json:"time_limit_minutes"`
	Questions        []StudentQuestion `json:"questions"`
}

type AuthorOption struct {
	ID        uint   `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type AuthorQuestion struct {
	ID         uint                `json:"id"`
	Text       string              `json:"text"`
	Type       models.QuestionType `json:"type"`
	OrderIndex int                 `json:"order_index"`
	Options    []AuthorOption      `json:"options"`
}

type AuthorTest struct {
	ID               uint             `json:"id"`
	CourseID         uint             `json:"course_id"`
	Title            string           `json:"title"`
	Description      *string          `json:"description"`
	TimeLimitMinutes *int             `json:"time_limit_minutes"`
	IsPublished      bool             `json:"is_published"`
	Questions        []AuthorQuestion `json:"questions"`
}

type CreateTestRequest struct {
	Title            string  `json:"title" binding:"required"`
	Description      *string `json:"description"`
	TimeLimitMinutes *int    `json:"time_limit_minutes" binding:"omitempty,min=1"`
	IsPublished      *bool   `json:"is_published"`
}

type CreateOptionRequest struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"is_correct"`
}

type CreateQuestionRequest struct {
	Text       string                `json:"text" binding:"required"`
	Type       models.QuestionType   `json:"type" binding:"required,oneof=single multiple"`
	OrderIndex *int                  `json:"order_index" binding:"omitempty,min=0"`
	Options    []CreateOptionRequest `json:"options" binding:"required,min=1,dive"`
}

type PublicationRequest struct {
	IsPublished *bool `json:"is_published" binding:"required"`
}

func summarize(test *models.Test) TestSummary {
	return TestSummary{
		ID:               test.ID,
		Title:            test.Title,
		Description:      test.Description,
		TimeLimitMinutes: test.TimeLimitMinutes,
	}
}

func toStudentTest(test *models.Test) *StudentTest {
	out := &StudentTest{
		ID:               test.ID,
		CourseID:         test.CourseID,
		Title:            test.Title,
		Description:      test.Description,
		TimeLimitMinutes: test.TimeLimitMinutes,
		Questions:        make([]StudentQuestion, len(test.Questions)),
	}
	for i, q := range test.Questions {
		sq := StudentQuestion{
			ID:         q.ID,
			Text:       q.Text,
			Type:       q.Type,
			OrderIndex: q.OrderIndex,
			Options:    make([]StudentOption, len(q.Options)),
		}
		for j, opt := range q.Options {
			sq.Options[j] = StudentOption{ID: opt.ID, Text: opt.Text}
		}
		out.Questions[i] = sq
	}
	return out
}

func toAuthorTest(test *models.Test) *AuthorTest {
	out := &AuthorTest{
		ID:               test.ID,
		CourseID:         test.CourseID,
		Title:            test.Title,
		Description:      test.Description,
		TimeLimitMinutes: test.TimeLimitMinutes,
		IsPublished:      test.IsPublished,
		Questions:        make([]AuthorQuestion, len(test.Questions)),
	}
	for i, q := range test.Questions {
		aq := AuthorQuestion{
			ID:         q.ID,
			Text:       q.Text,
			Type:       q.Type,
			OrderIndex: q.OrderIndex,
			Options:    make([]AuthorOption, len(q.Options)),
		}
		for j, opt := range q.Options {
			aq.Options[j] = AuthorOption{ID: opt.ID, Text: opt.Text, IsCorrect: opt.IsCorrect}
		}
		out.Questions[i] = aq
	}
	return out
}

// loadTest fetches a test with questions in evaluation order and their options.
func (s *TestCatalog) loadTest(ctx context.Context, query *gorm.DB) (*models.Test, error) {
	var test models.Test
	err := query.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index, id")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		}).
		First(&test).Error
	if err != nil {
		return nil, notFoundOr(err, "test not found")
	}
	return &test, nil
}

// ListPublishedTests returns the course's published tests, newest first.
func (s *TestCatalog) ListPublishedTests(ctx context.Context, courseID uint) ([]TestSummary, error) {
	var tests []models.Test
	err := s.db.WithContext(ctx).
		Where("course_id = ? AND is_published = ?", courseID, true).
		Order("created_at DESC, id DESC").
		Find(&tests).Error
	if err != nil {
		return nil, err
	}

	items := make([]TestSummary, len(tests))
	for i := range tests {
		items[i] = summarize(&tests[i])
	}
	return items, nil
}

// GetTestForStudent returns a published test without correctness data.
// Unpublished tests are reported as missing. A cached view is served only
// while the test is still published and unchanged since it was built.
func (s *TestCatalog) GetTestForStudent(ctx context.Context, testID uint) (*StudentTest, error) {
	if cached := s.cache.get(ctx, testID); cached != nil {
		var current models.Test
		err := s.db.WithContext(ctx).Select("id", "updated_at").
			Where("id = ? AND is_published = ?", testID, true).
			First(&current).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.cache.invalidate(ctx, testID)
			}
			return nil, notFoundOr(err, "test not found")
		}
		if current.UpdatedAt.Equal(cached.Version) {
			return cached.Test, nil
		}
	}

	test, err := s.loadTest(ctx, s.db.Where("id = ? AND is_published = ?", testID, true))
	if err != nil {
		return nil, err
	}
	out := toStudentTest(test)
	s.cache.put(ctx, out, test.UpdatedAt)
	return out, nil
}

// touchTest bumps updated_at so cached student views of the test go stale.
func touchTest(tx *gorm.DB, testID uint) error {
	return tx.Model(&models.Test{}).Where("id = ?", testID).Update("updated_at", time.Now()).Error
}

// GetTestForAuthor returns the full test including correctness flags,
// regardless of publication.
func (s *TestCatalog) GetTestForAuthor(ctx context.Context, testID uint) (*AuthorTest, error) {
	test, err := s.loadTest(ctx, s.db.Where("id = ?", testID))
	if err != nil {
		return nil, err
	}
	return toAuthorTest(test), nil
}

// TestCourse resolves the owning course of a test, published or not.
func (s *TestCatalog) TestCourse(ctx context.Context, testID uint) (uint, error) {
	var test models.Test
	if err := s.db.WithContext(ctx).Select("id", "course_id").First(&test, testID).Error; err != nil {
		return 0, notFoundOr(err, "test not found")
	}
	return test.CourseID, nil
}

func (s *TestCatalog) CreateTest(ctx context.Context, courseID uint, req *CreateTestRequest) (*TestSummary, error) {
	exists, err := s.directory.CourseExists(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, newError(ErrNotFound, "course not found")
	}

	test := models.Test{
		CourseID:         courseID,
		Title:            req.Title,
		Description:      req.Description,
		TimeLimitMinutes: req.TimeLimitMinutes,
		IsPublished:      true,
	}
	if req.IsPublished != nil {
		test.IsPublished = *req.IsPublished
	}
	if err := s.db.WithContext(ctx).Create(&test).Error; err != nil {
		return nil, err
	}
	log.Printf("[Catalog] created test %d in course %d (published=%t)", test.ID, courseID, test.IsPublished)

	out := summarize(&test)
	return &out, nil
}

func validateQuestion(req *CreateQuestionRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return newError(ErrInvalidInput, "question text is required")
	}
	if !req.Type.Valid() {
		return newError(ErrInvalidInput, "question type must be single or multiple")
	}
	if len(req.Options) == 0 {
		return newError(ErrInvalidInput, "question needs at least one option")
	}
	correct := 0
	for _, opt := range req.Options {
		if opt.IsCorrect {
			correct++
		}
	}
	if req.Type == models.QuestionSingle && correct != 1 {
		return newError(ErrInvalidInput, "single choice question must have exactly one correct option")
	}
	return nil
}

// AddQuestion appends a question with its options and returns the authoring view.
func (s *TestCatalog) AddQuestion(ctx context.Context, testID uint, req *CreateQuestionRequest) (*AuthorTest, error) {
	if err := validateQuestion(req); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var test models.Test
	if err := tx.First(&test, testID).Error; err != nil {
		tx.Rollback()
		return nil, notFoundOr(err, "test not found")
	}

	order := 0
	if req.OrderIndex != nil {
		order = *req.OrderIndex
	} else {
		maxOrder := -1
		if err := tx.Model(&models.Question{}).Where("test_id = ?", testID).
			Select("COALESCE(MAX(order_index), -1)").Scan(&maxOrder).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		order = maxOrder + 1
	}

	question := models.Question{
		TestID:     testID,
		Text:       req.Text,
		Type:       req.Type,
		OrderIndex: order,
	}
	if err := tx.Create(&question).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	options := make([]models.Option, len(req.Options))
	for i, optReq := range req.Options {
		options[i] = models.Option{
			QuestionID: question.ID,
			Text:       optReq.Text,
			IsCorrect:  optReq.IsCorrect,
		}
	}
	if err := tx.Create(&options).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := touchTest(tx, testID); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx, testID)
	log.Printf("[Catalog] added question %d (%s, %d options) to test %d", question.ID, question.Type, len(options), testID)

	return s.GetTestForAuthor(ctx, testID)
}

func (s *TestCatalog) SetPublished(ctx context.Context, testID uint, published bool) (*AuthorTest, error) {
	res := s.db.WithContext(ctx).Model(&models.Test{}).Where("id = ?", testID).Update("is_published", published)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, newError(ErrNotFound, "test not found")
	}
	s.cache.invalidate(ctx, testID)
	return s.GetTestForAuthor(ctx, testID)
}

// DeleteTest removes the test together with its questions, options,
// attempts and answers in one transaction.
func (s *TestCatalog) DeleteTest(ctx context.Context, testID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var test models.Test
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&test, testID).Error; err != nil {
			return notFoundOr(err, "test not found")
		}

		attemptIDs := tx.Model(&models.Attempt{}).Select("id").Where("test_id = ?", testID)
		questionIDs := tx.Model(&models.Question{}).Select("id").Where("test_id = ?", testID)

		if err := tx.Where("attempt_id IN (?)", attemptIDs).Delete(&models.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_id = ?", testID).Delete(&models.Attempt{}).Error; err != nil {
			return err
		}
		if err := tx.Where("question_id IN (?)", questionIDs).Delete(&models.Option{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_id = ?", testID).Delete(&models.Question{}).Error; err != nil {
			return err
		}
		return tx.Delete(&test).Error
	})
	if err != nil {
		return err
	}
	s.cache.invalidate(ctx, testID)
	log.Printf("[Catalog] deleted test %d", testID)
	return nil
}

// DeleteQuestion removes a question, its options and every answer that
// referenced it. Scores of finished attempts are left as recorded.
func (s *TestCatalog) DeleteQuestion(ctx context.Context, questionID uint) error {
	var testID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var question models.Question
		if err := tx.First(&question, questionID).Error; err != nil {
			return notFoundOr(err, "question not found")
		}
		testID = question.TestID

		if err := tx.Where("question_id = ?", questionID).Delete(&models.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("question_id = ?", questionID).Delete(&models.Option{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&question).Error; err != nil {
			return err
		}
		return touchTest(tx, testID)
	})
	if err != nil {
		return err
	}
	s.cache.invalidate(ctx, testID)
	return nil
}
