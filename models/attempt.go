package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuestionScore is one entry of an attempt's frozen per-question breakdown.
type QuestionScore struct {
	QuestionID uint `json:"question_id"`
	Awarded    int  `json:"awarded"`
}

type Attempt struct {
	ID         uint                               `json:"id" gorm:"primaryKey"`
	TestID     uint                               `json:"test_id" gorm:"not null;index:idx_attempt_test_student"`
	StudentID  uint                               `json:"student_id" gorm:"not null;index:idx_attempt_test_student"`
	StartedAt  time.Time                          `json:"started_at" gorm:"not null"`
	FinishedAt *time.Time                         `json:"finished_at"`
	Score      *float64                           `json:"score"`
	MaxScore   *int                               `json:"max_score"`
	Breakdown  datatypes.JSONSlice[QuestionScore] `json:"-"`

	// Relationships
	Answers []Answer `json:"-" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`
}

// Answer records one selected option of one question within an attempt.
type Answer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;index"`
	QuestionID uint `json:"question_id" gorm:"not null;index"`
	OptionID   uint `json:"option_id" gorm:"not null;index"`
}
