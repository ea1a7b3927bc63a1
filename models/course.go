package models

import "time"

type Course struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description"`
	IsPublished bool      `json:"is_published" gorm:"not null;default:false"`
	OwnerID     uint      `json:"owner_id" gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at"`

	// Relationships
	Owner       User         `json:"-" gorm:"foreignKey:OwnerID"`
	Enrollments []Enrollment `json:"-" gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE"`
	Tests       []Test       `json:"-" gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE"`
}

// Enrollment is the student/course membership consulted before any test operation.
type Enrollment struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	StudentID  uint      `json:"student_id" gorm:"not null;uniqueIndex:idx_enrollment_student_course"`
	CourseID   uint      `json:"course_id" gorm:"not null;uniqueIndex:idx_enrollment_student_course"`
	EnrolledAt time.Time `json:"enrolled_at" gorm:"not null"`
}
