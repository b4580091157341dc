// Package store provides storage backends for the survey flow engine.
//
// It includes an in-memory store for tests and zero-config runs, plus
// SQLite- and PostgreSQL-backed stores sharing one schema. The flow engine
// only ever sees the Store interface; which backend sits behind it is a
// deployment decision.
package store

import (
	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/models"
)

// Store is the data-access surface the flow engine consumes. Rule ordering is
// authoritative: GetQuestionLogic and GetSurveyLogic return rules in the
// store's own order and the engine imposes no secondary sort.
type Store interface {
	// Logic rules (read side of the flow engine, write side of authoring).
	GetQuestionLogic(questionID string) ([]models.LogicRule, error)
	GetSurveyLogic(surveyID string) ([]models.LogicRule, error)
	AddLogicRule(rule models.LogicRule) error

	// Participations. GetParticipation returns (nil, nil) when unknown;
	// callers decide whether that is a contract violation.
	GetParticipation(participationID string) (*models.Participation, error)
	SaveParticipation(p models.Participation) error
	UpdateParticipationSection(participationID, sectionID string) error
	CompleteSurvey(participationID string) error

	// Responses.
	GetSavedResponses(participationID string) ([]models.SurveyResponse, error)
	SaveSurveyResponse(r models.SurveyResponse) error

	// Question metadata for validation and availability.
	GetQuestion(questionID string) (*models.Question, error)
	SaveQuestion(q models.Question) error
	GetSurveyQuestionIDs(surveyID string) ([]string, error)
	GetChoices(questionID string) ([]models.Choice, error)
	AddChoice(c models.Choice) error
	GetMatrixRows(questionID string) ([]models.MatrixRow, error)
	GetMatrixColumns(questionID string) ([]models.MatrixColumn, error)
	AddMatrixRow(r models.MatrixRow) error
	AddMatrixColumn(c models.MatrixColumn) error

	Close() error
}
