package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestQuestion_ToDTO_HidesAnswerKey(t *testing.T) {
	q := Question{
		ID:          uuid.New(),
		Question:    "Where does the Krebs cycle take place?",
		Type:        QuestionTypeMultipleChoice,
		Answer:      "Mitochondrial matrix",
		Explanation: "The enzymes live in the matrix.",
		Position:    2,
	}
	q.SetOptions([]string{"Cytoplasm", "Mitochondrial matrix", "Nucleus"})

	hidden := q.ToDTO(false)
	assert.Empty(t, hidden.Answer)
	assert.Empty(t, hidden.Explanation)
	assert.Equal(t, []string{"Cytoplasm", "Mitochondrial matrix", "Nucleus"}, hidden.Options)
	assert.Equal(t, 2, hidden.Order)

	revealed := q.ToDTO(true)
	assert.Equal(t, "Mitochondrial matrix", revealed.Answer)
	assert.Equal(t, "The enzymes live in the matrix.", revealed.Explanation)
}

func TestQuestion_ToDTO_TrueFalseImplicitOptions(t *testing.T) {
	q := Question{Type: QuestionTypeTrueFalse, Answer: AnswerTrue}

	assert.Equal(t, []string{"true", "false"}, q.ToDTO(false).Options)
	assert.Nil(t, q.OptionList())
}
