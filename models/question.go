package models

type QuestionType string

const (
	// QuestionSingle has exactly one correct option.
	QuestionSingle QuestionType = "single"
	// QuestionMultiple has one or more correct options.
	QuestionMultiple QuestionType = "multiple"
)

func (t QuestionType) Valid() bool {
	return t == QuestionSingle || t == QuestionMultiple
}

type Question struct {
	ID         uint         `json:"id" gorm:"primaryKey"`
	TestID     uint         `json:"test_id" gorm:"not null;index"`
	Text       string       `json:"text" gorm:"not null"`
	Type       QuestionType `json:"type" gorm:"type:varchar(16);not null"`
	OrderIndex int          `json:"order_index" gorm:"not null;default:0"`

	// Relationships
	Options []Option `json:"options,omitempty" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}
