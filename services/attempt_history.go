package services

import (
	"context"
	"time"

	"psblearn/models"

	"gorm.io/gorm"
)

// AttemptResult is the attempt record exposed to grade, feed and progress views.
type AttemptResult struct {
	ID         uint       `json:"id"`
	TestID     uint       `json:"test_id"`
	StudentID  uint       `json:"student_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Score      *float64   `json:"score"`
	MaxScore   *int       `json:"max_score"`
	// Breakdown lists the points awarded per question, in evaluation order.
	Breakdown []models.QuestionScore `json:"breakdown"`
}

type AttemptHistory struct {
	db *gorm.DB
}

func NewAttemptHistory(db *gorm.DB) *AttemptHistory {
	return &AttemptHistory{db: db}
}

func toAttemptResults(attempts []models.Attempt) []AttemptResult {
	items := make([]AttemptResult, len(attempts))
	for i, a := range attempts {
		items[i] = AttemptResult{
			ID:         a.ID,
			TestID:     a.TestID,
			StudentID:  a.StudentID,
			StartedAt:  a.StartedAt,
			FinishedAt: a.FinishedAt,
			Score:      a.Score,
			MaxScore:   a.MaxScore,
			Breakdown:  []models.QuestionScore(a.Breakdown),
		}
	}
	return items
}

// ListMyAttempts returns the student's attempts on a test, most recent first.
func (h *AttemptHistory) ListMyAttempts(ctx context.Context, testID, studentID uint) ([]AttemptResult, error) {
	var attempts []models.Attempt
	err := h.db.WithContext(ctx).
		Where("test_id = ? AND student_id = ?", testID, studentID).
		Order("started_at DESC, id DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return toAttemptResults(attempts), nil
}

// ListTestAttempts returns every student's attempts on a test for the author.
func (h *AttemptHistory) ListTestAttempts(ctx context.Context, testID uint) ([]AttemptResult, error) {
	var attempts []models.Attempt
	err := h.db.WithContext(ctx).
		Where("test_id = ?", testID).
		Order("started_at DESC, id DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return toAttemptResults(attempts), nil
}
