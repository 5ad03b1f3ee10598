// internal/models/dto.go
package models

import "github.com/google/uuid"

type QuestionDTO struct {
	ID          uuid.UUID `json:"id"`
	Question    string    `json:"question"`
	Type        string    `json:"type"`
	Options     []string  `json:"options"`
	Order       int       `json:"order"`
	Answer      string    `json:"answer,omitempty"`      // Only for owners and after scoring
	Explanation string    `json:"explanation,omitempty"` // Only for owners and after scoring
}

// ToDTO hides the answer key unless reveal is set. True/false questions
// get their implicit options filled in.
func (q Question) ToDTO(reveal bool) QuestionDTO {
	options := q.OptionList()
	if q.Type == QuestionTypeTrueFalse {
		options = []string{AnswerTrue, AnswerFalse}
	}
	if options == nil {
		options = []string{}
	}

	dto := QuestionDTO{
		ID:       q.ID,
		Question: q.Question,
		Type:     q.Type,
		Options:  options,
		Order:    q.Position,
	}
	if reveal {
		dto.Answer = q.Answer
		dto.Explanation = q.Explanation
	}
	return dto
}

func QuestionsToDTO(questions []Question, reveal bool) []QuestionDTO {
	out := make([]QuestionDTO, len(questions))
	for i, q := range questions {
		out[i] = q.ToDTO(reveal)
	}
	return out
}

type QuizWithQuestions struct {
	Quiz
	Questions []QuestionDTO `json:"questions"`
}
