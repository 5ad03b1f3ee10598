// internal/models/quiz.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

const (
	QuestionTypeMultipleChoice = "mcq"
	QuestionTypeTrueFalse      = "tf"
)

// True/false questions have these two implicit options.
const (
	AnswerTrue  = "true"
	AnswerFalse = "false"
)

type User struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Username  string    `json:"username"`
	Password  string    `json:"-" gorm:"not null"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Profile shares its id with the owning user.
type Profile struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Username        string    `json:"username"`
	Role            Role      `json:"role" gorm:"not null;default:student"`
	TeacherVerified bool      `json:"teacher_verified" gorm:"default:false"`
}

type Quiz struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	TeacherID    uuid.UUID `json:"teacher_id" gorm:"type:uuid;index;not null"`
	Title        string    `json:"title" gorm:"not null"`
	Description  string    `json:"description"`
	PassingScore int       `json:"passing_score" gorm:"not null;default:7"`
	IsPublished  bool      `json:"is_published" gorm:"default:false"`
}

func (q *Quiz) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

type Question struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	QuizID      uuid.UUID      `json:"quiz_id" gorm:"type:uuid;index;not null"`
	Question    string         `json:"question" gorm:"not null"`
	Type        string         `json:"type" gorm:"not null"`
	Options     datatypes.JSON `json:"options"`
	Answer      string         `json:"answer" gorm:"not null"`
	Explanation string         `json:"explanation"`
	Position    int            `json:"order" gorm:"column:position;index"`
}

func (Question) TableName() string {
	return "quiz_questions"
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// OptionList decodes the stored options. Malformed or empty columns yield nil.
func (q Question) OptionList() []string {
	if len(q.Options) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(q.Options, &out); err != nil {
		return nil
	}
	return out
}

func (q *Question) SetOptions(options []string) {
	if len(options) == 0 {
		q.Options = nil
		return
	}
	data, _ := json.Marshal(options)
	q.Options = datatypes.JSON(data)
}

// QuizResponse is one immutable attempt record.
type QuizResponse struct {
	ID          uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	QuizID      uuid.UUID         `json:"quiz_id" gorm:"type:uuid;index:idx_response_owner;not null"`
	StudentID   uuid.UUID         `json:"student_id" gorm:"type:uuid;index:idx_response_owner;not null"`
	Answers     datatypes.JSONMap `json:"answers"`
	Score       int               `json:"score"`
	Passed      bool              `json:"passed"`
	SubmittedAt time.Time         `json:"submitted_at" gorm:"index;not null"`
}

func (r *QuizResponse) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// AllModels lists every table for AutoMigrate.
func AllModels() []any {
	return []any{
		&User{},
		&Profile{},
		&Quiz{},
		&Question{},
		&QuizResponse{},
	}
}
