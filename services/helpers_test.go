package services

import (
	"context"
	"testing"

	"psblearn/config"
	"psblearn/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	db      *gorm.DB
	teacher models.User
	student models.User
	course  models.Course
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)

	f := &fixture{db: db}
	f.teacher = f.user(t, "teacher@example.test", models.RoleTeacher)
	f.student = f.user(t, "student@example.test", models.RoleStudent)
	f.course = models.Course{Title: "Go basics", IsPublished: true, OwnerID: f.teacher.ID}
	if err := db.Create(&f.course).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return f
}

func (f *fixture) user(t *testing.T, email string, role models.Role) models.User {
	t.Helper()
	u := models.User{Email: email, FullName: email, Role: role, PasswordHash: "x"}
	if err := f.db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func (f *fixture) enroll(t *testing.T, studentID uint) {
	t.Helper()
	if _, err := NewDirectoryService(f.db).Enroll(context.Background(), studentID, f.course.ID); err != nil {
		t.Fatalf("enroll: %v", err)
	}
}

type optionSpec struct {
	text    string
	correct bool
}

type questionSpec struct {
	text    string
	qType   models.QuestionType
	options []optionSpec
}

// seedTest inserts a test directly, bypassing authoring validation so that
// malformed catalogs (e.g. a multiple question with no correct option) can
// be represented.
func (f *fixture) seedTest(t *testing.T, published bool, questions ...questionSpec) (models.Test, [][]models.Option) {
	t.Helper()

	test := models.Test{CourseID: f.course.ID, Title: "Quiz", IsPublished: published}
	if err := f.db.Create(&test).Error; err != nil {
		t.Fatalf("seed test: %v", err)
	}

	options := make([][]models.Option, len(questions))
	for i, qs := range questions {
		q := models.Question{TestID: test.ID, Text: qs.text, Type: qs.qType, OrderIndex: i}
		if err := f.db.Create(&q).Error; err != nil {
			t.Fatalf("seed question: %v", err)
		}
		for _, os := range qs.options {
			opt := models.Option{QuestionID: q.ID, Text: os.text, IsCorrect: os.correct}
			if err := f.db.Create(&opt).Error; err != nil {
				t.Fatalf("seed option: %v", err)
			}
			options[i] = append(options[i], opt)
		}
	}
	return test, options
}

func (f *fixture) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
