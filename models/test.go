package models

import "time"

type Test struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	CourseID         uint      `json:"course_id" gorm:"not null;index"`
	Title            string    `json:"title" gorm:"not null"`
	Description      *string   `json:"description"`
	IsPublished      bool      `json:"is_published" gorm:"not null"`
	TimeLimitMinutes *int      `json:"time_limit_minutes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Relationships
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE"`
	Attempts  []Attempt  `json:"-" gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE"`
}
