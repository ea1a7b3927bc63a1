package services

import (
	"context"
	"log"
	"time"

	"psblearn/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AttemptNotifier receives committed attempts. The websocket Hub is the
// production implementation.
type AttemptNotifier interface {
	AttemptSubmitted(courseID uint, event AttemptEvent)
}

// AttemptEngine creates, scores and finalizes attempts in a single
// transaction.
type AttemptEngine struct {
	db        *gorm.DB
	directory *DirectoryService
	notifier  AttemptNotifier
	lock      *submitLock
	now       func() time.Time
}

func NewAttemptEngine(db *gorm.DB, directory *DirectoryService, notifier AttemptNotifier, redisClient *redis.Client, lockTTL time.Duration) *AttemptEngine {
	return &AttemptEngine{
		db:        db,
		directory: directory,
		notifier:  notifier,
		lock:      &submitLock{redis: redisClient, ttl: lockTTL},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type AnswerEntry struct {
	QuestionID        uint   `json:"question_id"`
	SelectedOptionIDs []uint `json:"selected_option_ids"`
}

type SubmitRequest struct {
	Answers []AnswerEntry `json:"answers"`
}

type SubmitResult struct {
	AttemptID uint    `json:"attempt_id"`
	Score     float64 `json:"score"`
	MaxScore  int     `json:"max_score"`
	// Discarded counts references that were ignored: entries for questions
	// outside the test, option ids not belonging to their question and
	// repeated option ids.
	Discarded int `json:"discarded"`
}

// Submit opens an attempt for the student, records the valid selections,
// scores them and finalizes the attempt. Either all of it is persisted or
// nothing is.
func (e *AttemptEngine) Submit(ctx context.Context, testID, studentID uint, req *SubmitRequest) (*SubmitResult, error) {
	var test models.Test
	if err := e.db.WithContext(ctx).Where("id = ? AND is_published = ?", testID, true).First(&test).Error; err != nil {
		return nil, notFoundOr(err, "test not found")
	}
	if err := e.directory.RequireEnrollment(ctx, studentID, test.CourseID); err != nil {
		return nil, err
	}

	release, err := e.lock.acquire(ctx, testID, studentID)
	if err != nil {
		return nil, err
	}
	defer release()

	var entries []AnswerEntry
	if req != nil {
		entries = req.Answers
	}

	var (
		attempt models.Attempt
		result  SubmitResult
	)
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var questions []models.Question
		if err := tx.Where("test_id = ?", testID).Order("order_index, id").Find(&questions).Error; err != nil {
			return err
		}
		if len(questions) == 0 {
			return newError(ErrInvalidState, "test has no questions")
		}

		attempt = models.Attempt{
			TestID:    testID,
			StudentID: studentID,
			StartedAt: e.now(),
		}
		if err := tx.Create(&attempt).Error; err != nil {
			return err
		}

		requested, discarded := requestedSelections(questions, entries)
		score := 0
		breakdown := make([]models.QuestionScore, 0, len(questions))

		for _, q := range questions {
			options, correct, err := questionOptions(tx, q.ID)
			if err != nil {
				return err
			}
			selected := requested[q.ID].intersect(options)
			discarded += len(requested[q.ID]) - len(selected)

			if len(selected) > 0 {
				answers := make([]models.Answer, 0, len(selected))
				for optionID := range selected {
					answers = append(answers, models.Answer{AttemptID: attempt.ID, QuestionID: q.ID, OptionID: optionID})
				}
				if err := tx.Create(&answers).Error; err != nil {
					return err
				}
			}

			awarded := scoreQuestion(q.Type, selected, correct)
			score += awarded
			breakdown = append(breakdown, models.QuestionScore{QuestionID: q.ID, Awarded: awarded})
		}

		finished := e.now()
		total := float64(score)
		maxScore := len(questions)
		attempt.FinishedAt = &finished
		attempt.Score = &total
		attempt.MaxScore = &maxScore
		attempt.Breakdown = datatypes.NewJSONSlice(breakdown)

		if err := tx.Model(&attempt).Select("FinishedAt", "Score", "MaxScore", "Breakdown").Updates(&attempt).Error; err != nil {
			return err
		}

		result = SubmitResult{AttemptID: attempt.ID, Score: total, MaxScore: maxScore, Discarded: discarded}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[AttemptEngine] attempt %d: student %d scored %.0f/%d on test %d (discarded=%d)",
		result.AttemptID, studentID, result.Score, result.MaxScore, testID, result.Discarded)

	if e.notifier != nil {
		e.notifier.AttemptSubmitted(test.CourseID, AttemptEvent{
			AttemptID:  result.AttemptID,
			TestID:     testID,
			StudentID:  studentID,
			Score:      result.Score,
			MaxScore:   result.MaxScore,
			FinishedAt: *attempt.FinishedAt,
		})
	}
	return &result, nil
}

// questionOptions reads the option ids of a question and its correct
// subset straight from the catalog tables, never from submitted answers.
func questionOptions(tx *gorm.DB, questionID uint) (idSet, idSet, error) {
	var rows []models.Option
	err := tx.Select("id", "is_correct").
		Where("question_id = ?", questionID).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	all, correct := idSet{}, idSet{}
	for _, opt := range rows {
		all[opt.ID] = struct{}{}
		if opt.IsCorrect {
			correct[opt.ID] = struct{}{}
		}
	}
	return all, correct, nil
}

// Rescore recomputes an attempt's score from its stored answers and the
// current correct options without writing anything.
func (e *AttemptEngine) Rescore(ctx context.Context, attemptID uint) (float64, error) {
	db := e.db.WithContext(ctx)

	var attempt models.Attempt
	if err := db.First(&attempt, attemptID).Error; err != nil {
		return 0, notFoundOr(err, "attempt not found")
	}

	var questions []models.Question
	if err := db.Where("test_id = ?", attempt.TestID).Order("order_index, id").Find(&questions).Error; err != nil {
		return 0, err
	}

	var answers []models.Answer
	if err := db.Where("attempt_id = ?", attemptID).Find(&answers).Error; err != nil {
		return 0, err
	}
	selected := make(map[uint]idSet)
	for _, a := range answers {
		if selected[a.QuestionID] == nil {
			selected[a.QuestionID] = idSet{}
		}
		selected[a.QuestionID][a.OptionID] = struct{}{}
	}

	score := 0
	for _, q := range questions {
		_, correct, err := questionOptions(db, q.ID)
		if err != nil {
			return 0, err
		}
		score += scoreQuestion(q.Type, selected[q.ID], correct)
	}
	return float64(score), nil
}
