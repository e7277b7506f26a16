package domain

import "math"

// QuestionKind is the closed set of supported question variants.
type QuestionKind string

const (
	MultipleChoice QuestionKind = "multiple-choice"
	ImageQuestion  QuestionKind = "image-question"
	TrueFalse      QuestionKind = "true-false"
	NumberInput    QuestionKind = "number-input"
)

// Question is one quiz item as the server sees it, correctness data included.
// Only the fields matching the kind are meaningful: CorrectIndex for choice
// kinds, CorrectBool for true/false, CorrectNumber and Tolerance for number
// input.
type Question struct {
	ID            string       `json:"id"`
	Kind          QuestionKind `json:"type"`
	Prompt        string       `json:"prompt"`
	Choices       []string     `json:"choices,omitempty"`
	ImageURL      string       `json:"imageUrl,omitempty"`
	CorrectIndex  int          `json:"correctIndex,omitempty"`
	CorrectBool   bool         `json:"correct,omitempty"`
	CorrectNumber float64      `json:"correctAnswer,omitempty"`
	Tolerance     float64      `json:"tolerance,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
	Difficulty    int          `json:"difficulty,omitempty"`
	Grade         int          `json:"grade,omitempty"`
	Language      string       `json:"language,omitempty"`
}

// Check reports whether the submitted value answers the question correctly.
// For choice kinds the value is the chosen index; for true/false index 0
// means "true"; for number input the value is compared within tolerance.
func (q Question) Check(value float64) bool {
	switch q.Kind {
	case MultipleChoice, ImageQuestion:
		return int(value) == q.CorrectIndex
	case TrueFalse:
		return (int(value) == 0) == q.CorrectBool
	case NumberInput:
		return math.Abs(value-q.CorrectNumber) <= q.Tolerance
	default:
		return false
	}
}

// RevealIndex is the index clients display as the correct choice once the
// answer may be shown. Number input reveals the rounded correct value.
func (q Question) RevealIndex() int {
	switch q.Kind {
	case MultipleChoice, ImageQuestion:
		return q.CorrectIndex
	case TrueFalse:
		if q.CorrectBool {
			return 0
		}
		return 1
	case NumberInput:
		return int(math.Round(q.CorrectNumber))
	default:
		return -1
	}
}

// SanitizedQuestion is the client-safe projection of a question: everything
// that could reveal the answer (correct index/value, tolerance, explanation)
// is stripped.
type SanitizedQuestion struct {
	ID       string       `json:"id"`
	Kind     QuestionKind `json:"type"`
	Prompt   string       `json:"prompt"`
	Choices  []string     `json:"choices,omitempty"`
	ImageURL string       `json:"imageUrl,omitempty"`
	Grade    int          `json:"grade,omitempty"`
}

// Sanitized strips all answer-revealing fields. True/false questions always
// expose the fixed True/False pair so clients need no special casing.
func (q Question) Sanitized() SanitizedQuestion {
	choices := q.Choices
	if q.Kind == TrueFalse {
		choices = []string{"True", "False"}
	}
	if q.Kind == NumberInput {
		choices = nil
	}
	return SanitizedQuestion{
		ID:       q.ID,
		Kind:     q.Kind,
		Prompt:   q.Prompt,
		Choices:  choices,
		ImageURL: q.ImageURL,
		Grade:    q.Grade,
	}
}
