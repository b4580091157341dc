// Package models defines the core data structures for the survey flow engine.
//
// This file covers the survey content side: questions, choices, matrix
// dimensions, participations, and saved responses.
package models

import (
	"errors"
	"time"
)

// QuestionType defines how a question is answered and validated.
type QuestionType string

const (
	QuestionShortText      QuestionType = "short_text"
	QuestionLongText       QuestionType = "long_text"
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionRating         QuestionType = "rating"
	QuestionSlider         QuestionType = "slider"
	QuestionNumberInput    QuestionType = "number_input"
	QuestionMatrix         QuestionType = "matrix"
	QuestionDate           QuestionType = "date"
	QuestionEmail          QuestionType = "email"
	QuestionPhone          QuestionType = "phone"
	QuestionYesNo          QuestionType = "yes_no"
)

// IsValidQuestionType checks if the given question type is supported.
func IsValidQuestionType(qt QuestionType) bool {
	switch qt {
	case QuestionShortText, QuestionLongText, QuestionSingleChoice,
		QuestionMultipleChoice, QuestionRating, QuestionSlider,
		QuestionNumberInput, QuestionMatrix, QuestionDate,
		QuestionEmail, QuestionPhone, QuestionYesNo:
		return true
	default:
		return false
	}
}

// DefaultRange returns the question type's own numeric bounds, used when a
// question does not override min/max. ok is false for types without a
// built-in range.
func DefaultRange(qt QuestionType) (min, max float64, ok bool) {
	switch qt {
	case QuestionRating:
		return 1, 5, true
	case QuestionSlider:
		return 0, 100, true
	default:
		return 0, 0, false
	}
}

// Question carries the metadata the validator and flow engine need. Survey
// authoring owns the full record; this is the read side.
type Question struct {
	ID                string       `json:"id"`
	SurveyID          string       `json:"survey_id"`
	SectionID         string       `json:"section_id"`
	Type              QuestionType `json:"type"`
	Text              string       `json:"text"`
	IsMandatory       bool         `json:"is_mandatory"`
	MinLength         int          `json:"min_length,omitempty"`
	MaxLength         int          `json:"max_length,omitempty"` // 0 means unbounded
	MinValue          *float64     `json:"min_value,omitempty"`
	MaxValue          *float64     `json:"max_value,omitempty"`
	ValidationRegex   string       `json:"validation_regex,omitempty"`
	ValidationMessage string       `json:"validation_message,omitempty"`
	Order             int          `json:"order"`
}

// Range returns the effective numeric bounds for this question: explicit
// min/max when configured, otherwise the type defaults.
func (q *Question) Range() (min, max float64, ok bool) {
	defMin, defMax, defOK := DefaultRange(q.Type)
	min, max, ok = defMin, defMax, defOK
	if q.MinValue != nil {
		min, ok = *q.MinValue, true
	}
	if q.MaxValue != nil {
		max = *q.MaxValue
		if q.MinValue == nil && !defOK {
			min = 0
		}
		ok = true
	}
	return min, max, ok
}

// Choice is one selectable option of a single- or multiple-choice question.
type Choice struct {
	ID          string `json:"id"`
	QuestionID  string `json:"question_id"`
	Value       string `json:"value"`
	Label       string `json:"label"`
	IsExclusive bool   `json:"is_exclusive"` // cannot be combined with other selections
	Order       int    `json:"order"`
}

// MatrixRow is one row of a matrix question.
type MatrixRow struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Label      string `json:"label"`
	Order      int    `json:"order"`
}

// MatrixColumn is one answer column of a matrix question.
type MatrixColumn struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
	Label      string `json:"label"`
	Order      int    `json:"order"`
}

// ParticipationStatus represents the lifecycle state of a participation.
type ParticipationStatus string

const (
	// ParticipationStatusActive indicates the respondent is mid-survey.
	ParticipationStatusActive ParticipationStatus = "active"
	// ParticipationStatusCompleted indicates the respondent finished the survey.
	ParticipationStatusCompleted ParticipationStatus = "completed"
	// ParticipationStatusDisqualified indicates the respondent was screened out.
	ParticipationStatusDisqualified ParticipationStatus = "disqualified"
	// ParticipationStatusWithdrawn indicates the respondent abandoned the survey.
	ParticipationStatusWithdrawn ParticipationStatus = "withdrawn"
)

// IsValidParticipationStatus checks if the given participation status is valid.
func IsValidParticipationStatus(status ParticipationStatus) bool {
	switch status {
	case ParticipationStatusActive, ParticipationStatusCompleted,
		ParticipationStatusDisqualified, ParticipationStatusWithdrawn:
		return true
	default:
		return false
	}
}

// Participation is one respondent's enrollment instance in one survey.
type Participation struct {
	ID                string              `json:"id"`
	SurveyID          string              `json:"survey_id"`
	RespondentID      string              `json:"respondent_id"`
	Status            ParticipationStatus `json:"status"`
	CurrentSectionID  string              `json:"current_section_id,omitempty"`
	CurrentQuestionID string              `json:"current_question_id,omitempty"`
	StartedAt         time.Time           `json:"started_at"`
	CompletedAt       *time.Time          `json:"completed_at,omitempty"`
}

// Validation error variables for responses.
var (
	ErrResponseMissingParticipation = errors.New("response requires a participation")
	ErrResponseMissingQuestion      = errors.New("response requires a question")
)

// SurveyResponse is one saved answer: one row per (participation, question
// [, matrix row]). A later answer to the same question overwrites the earlier
// one for flow purposes; the most recent response wins.
type SurveyResponse struct {
	ID              string    `json:"id"`
	ParticipationID string    `json:"participation_id"`
	QuestionID      string    `json:"question_id"`
	MatrixRowID     string    `json:"matrix_row_id,omitempty"`
	Answer          string    `json:"answer"`
	RespondedAt     time.Time `json:"responded_at"`
}

// Validate checks the response's reference fields.
func (r *SurveyResponse) Validate() error {
	if r.ParticipationID == "" {
		return ErrResponseMissingParticipation
	}
	if r.QuestionID == "" {
		return ErrResponseMissingQuestion
	}
	return nil
}
