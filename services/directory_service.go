package services

import (
	"context"
	"log"
	"time"

	"psblearn/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DirectoryService answers course membership questions for the test
// catalog and the attempt engine.
type DirectoryService struct {
	db *gorm.DB
}

func NewDirectoryService(db *gorm.DB) *DirectoryService {
	return &DirectoryService{db: db}
}

type CreateCourseRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	IsPublished *bool  `json:"is_published"`
}

func (s *DirectoryService) CreateCourse(ctx context.Context, ownerID uint, req *CreateCourseRequest) (*models.Course, error) {
	course := models.Course{
		Title:       req.Title,
		Description: req.Description,
		IsPublished: true,
		OwnerID:     ownerID,
	}
	if req.IsPublished != nil {
		course.IsPublished = *req.IsPublished
	}
	if err := s.db.WithContext(ctx).Create(&course).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (s *DirectoryService) GetCourse(ctx context.Context, courseID uint) (*models.Course, error) {
	var course models.Course
	if err := s.db.WithContext(ctx).First(&course, courseID).Error; err != nil {
		return nil, notFoundOr(err, "course not found")
	}
	return &course, nil
}

// Enroll adds the student to a published course. Enrolling twice is a no-op.
func (s *DirectoryService) Enroll(ctx context.Context, studentID, courseID uint) (*models.Course, error) {
	var course models.Course
	if err := s.db.WithContext(ctx).Where("id = ? AND is_published = ?", courseID, true).First(&course).Error; err != nil {
		return nil, notFoundOr(err, "course not found")
	}

	enrollment := models.Enrollment{StudentID: studentID, CourseID: courseID, EnrolledAt: time.Now().UTC()}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(&enrollment)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("[Directory] student %d enrolled in course %d", studentID, courseID)
	}
	return &course, nil
}

func (s *DirectoryService) IsEnrolled(ctx context.Context, studentID, courseID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Count(&count).Error
	return count > 0, err
}

// RequireEnrollment fails with ErrForbidden when the student is not a member of the course.
func (s *DirectoryService) RequireEnrollment(ctx context.Context, studentID, courseID uint) error {
	ok, err := s.IsEnrolled(ctx, studentID, courseID)
	if err != nil {
		return err
	}
	if !ok {
		return newError(ErrForbidden, "no access to course")
	}
	return nil
}

func (s *DirectoryService) CourseExists(ctx context.Context, courseID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Course{}).Where("id = ?", courseID).Count(&count).Error
	return count > 0, err
}
