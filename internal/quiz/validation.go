package quiz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"bioboost/internal/models"
)

// ValidationError rejects malformed authoring input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type QuizInput struct {
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description" validate:"max=2000"`
	PassingScore int    `json:"passing_score"`
}

type QuestionInput struct {
	Question    string   `json:"question" validate:"required"`
	Type        string   `json:"type" validate:"required,oneof=mcq tf"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer" validate:"required"`
	Explanation string   `json:"explanation"`
}

const (
	defaultPassingScore = 7
	minOptions          = 2
)

var validate = validator.New()

func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{
			Field:  strings.ToLower(fe.Field()),
			Reason: fmt.Sprintf("failed %q check", fe.Tag()),
		}
	}
	return &ValidationError{Field: "input", Reason: err.Error()}
}

// NormalizeQuiz trims the input and coerces the passing score to at least 1.
func NormalizeQuiz(in QuizInput) (QuizInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := validate.Struct(in); err != nil {
		return QuizInput{}, fromValidator(err)
	}
	if in.PassingScore < 1 {
		in.PassingScore = 1
	}
	return in, nil
}

// ValidateQuestion checks a question before it is stored. Multiple-choice
// answers must match one option verbatim; true/false answers must be one of
// the two literals and carry no options.
func ValidateQuestion(in QuestionInput) (QuestionInput, error) {
	in.Question = strings.TrimSpace(in.Question)
	if err := validate.Struct(in); err != nil {
		return QuestionInput{}, fromValidator(err)
	}

	switch in.Type {
	case models.QuestionTypeMultipleChoice:
		options := make([]string, 0, len(in.Options))
		for _, opt := range in.Options {
			if strings.TrimSpace(opt) == "" {
				continue
			}
			options = append(options, opt)
		}
		if len(options) < minOptions {
			return QuestionInput{}, &ValidationError{Field: "options", Reason: fmt.Sprintf("need at least %d non-empty options", minOptions)}
		}
		seen := make(map[string]bool, len(options))
		for _, opt := range options {
			if seen[opt] {
				return QuestionInput{}, &ValidationError{Field: "options", Reason: fmt.Sprintf("duplicate option %q", opt)}
			}
			seen[opt] = true
		}
		if !seen[in.Answer] {
			return QuestionInput{}, &ValidationError{Field: "answer", Reason: "must match one of the options"}
		}
		in.Options = options

	case models.QuestionTypeTrueFalse:
		if in.Answer != models.AnswerTrue && in.Answer != models.AnswerFalse {
			return QuestionInput{}, &ValidationError{Field: "answer", Reason: `must be "true" or "false"`}
		}
		in.Options = nil
	}

	return in, nil
}
