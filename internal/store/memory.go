// Package store provides storage backends for the survey flow engine.
//
// This file implements the in-memory store used by tests and by runs without
// a configured database.
package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/models"
	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/util"
)

// Compile-time checks.
var (
	_ Store   = (*InMemoryStore)(nil)
	_ JobRepo = (*InMemoryStore)(nil)
)

// InMemoryStore keeps all survey data in process memory. Rule order is
// insertion order, which makes it the reference backend for ordering-sensitive
// evaluator tests.
type InMemoryStore struct {
	mu             sync.RWMutex
	rules          []models.LogicRule
	questions      map[string]models.Question
	choices        map[string][]models.Choice       // question id -> choices
	matrixRows     map[string][]models.MatrixRow    // question id -> rows
	matrixColumns  map[string][]models.MatrixColumn // question id -> columns
	participations map[string]models.Participation
	responses      []models.SurveyResponse
	jobs           map[string]Job
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		questions:      make(map[string]models.Question),
		choices:        make(map[string][]models.Choice),
		matrixRows:     make(map[string][]models.MatrixRow),
		matrixColumns:  make(map[string][]models.MatrixColumn),
		participations: make(map[string]models.Participation),
		jobs:           make(map[string]Job),
	}
}

// GetQuestionLogic returns the rules attached to a question in insertion order.
func (s *InMemoryStore) GetQuestionLogic(questionID string) ([]models.LogicRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rules []models.LogicRule
	for _, r := range s.rules {
		if r.SourceQuestionID == questionID {
			rules = append(rules, r)
		}
	}
	return rules, nil
}

// GetSurveyLogic returns every rule of a survey in insertion order.
func (s *InMemoryStore) GetSurveyLogic(surveyID string) ([]models.LogicRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rules []models.LogicRule
	for _, r := range s.rules {
		if r.SurveyID == surveyID {
			rules = append(rules, r)
		}
	}
	return rules, nil
}

// AddLogicRule appends a rule, assigning an ID when absent.
func (s *InMemoryStore) AddLogicRule(rule models.LogicRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID == "" {
		rule.ID = util.GenerateRuleID()
	}
	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	s.rules = append(s.rules, rule)
	return nil
}

// GetParticipation returns a participation, or (nil, nil) when unknown.
func (s *InMemoryStore) GetParticipation(participationID string) (*models.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participations[participationID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// SaveParticipation inserts or replaces a participation.
func (s *InMemoryStore) SaveParticipation(p models.Participation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = util.GenerateParticipationID()
	}
	s.participations[p.ID] = p
	return nil
}

// UpdateParticipationSection moves a participation's current section pointer.
func (s *InMemoryStore) UpdateParticipationSection(participationID, sectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participations[participationID]
	if !ok {
		return nil
	}
	p.CurrentSectionID = sectionID
	p.CurrentQuestionID = ""
	s.participations[participationID] = p
	return nil
}

// CompleteSurvey marks a participation as completed.
func (s *InMemoryStore) CompleteSurvey(participationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participations[participationID]
	if !ok {
		return nil
	}
	now := time.Now()
	p.Status = models.ParticipationStatusCompleted
	p.CompletedAt = &now
	s.participations[participationID] = p
	slog.Debug("InMemoryStore CompleteSurvey succeeded", "participationID", participationID)
	return nil
}

// GetSavedResponses returns a participation's responses in insertion order.
func (s *InMemoryStore) GetSavedResponses(participationID string) ([]models.SurveyResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var responses []models.SurveyResponse
	for _, r := range s.responses {
		if r.ParticipationID == participationID {
			responses = append(responses, r)
		}
	}
	return responses, nil
}

// SaveSurveyResponse appends a response, assigning ID and timestamp when absent.
func (s *InMemoryStore) SaveSurveyResponse(r models.SurveyResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = util.GenerateResponseID()
	}
	if r.RespondedAt.IsZero() {
		r.RespondedAt = time.Now()
	}
	s.responses = append(s.responses, r)
	return nil
}

// GetQuestion returns a question, or (nil, nil) when unknown.
func (s *InMemoryStore) GetQuestion(questionID string) (*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[questionID]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

// SaveQuestion inserts or replaces a question.
func (s *InMemoryStore) SaveQuestion(q models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = q
	return nil
}

// GetSurveyQuestionIDs returns the ids of every question of a survey.
func (s *InMemoryStore) GetSurveyQuestionIDs(surveyID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, q := range s.questions {
		if q.SurveyID == surveyID {
			ids = append(ids, q.ID)
		}
	}
	return ids, nil
}

// GetChoices returns a question's choices.
func (s *InMemoryStore) GetChoices(questionID string) ([]models.Choice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Choice(nil), s.choices[questionID]...), nil
}

// AddChoice appends a choice to its question.
func (s *InMemoryStore) AddChoice(c models.Choice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.choices[c.QuestionID] = append(s.choices[c.QuestionID], c)
	return nil
}

// GetMatrixRows returns a matrix question's rows.
func (s *InMemoryStore) GetMatrixRows(questionID string) ([]models.MatrixRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.MatrixRow(nil), s.matrixRows[questionID]...), nil
}

// GetMatrixColumns returns a matrix question's columns.
func (s *InMemoryStore) GetMatrixColumns(questionID string) ([]models.MatrixColumn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.MatrixColumn(nil), s.matrixColumns[questionID]...), nil
}

// AddMatrixRow appends a row to its matrix question.
func (s *InMemoryStore) AddMatrixRow(r models.MatrixRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matrixRows[r.QuestionID] = append(s.matrixRows[r.QuestionID], r)
	return nil
}

// AddMatrixColumn appends a column to its matrix question.
func (s *InMemoryStore) AddMatrixColumn(c models.MatrixColumn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matrixColumns[c.QuestionID] = append(s.matrixColumns[c.QuestionID], c)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

// EnqueueJob records a background job. Dedupe-key hits return the existing
// job's ID without inserting a duplicate.
func (s *InMemoryStore) EnqueueJob(kind string, runAt time.Time, payloadJSON string, dedupeKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dedupeKey != "" {
		for _, j := range s.jobs {
			if j.DedupeKey == dedupeKey && j.Status == JobStatusQueued {
				slog.Debug("InMemoryStore EnqueueJob dedupe hit", "dedupeKey", dedupeKey, "existingID", j.ID)
				return j.ID, nil
			}
		}
	}
	now := time.Now()
	job := Job{
		ID:          util.GenerateJobID(),
		Kind:        kind,
		RunAt:       runAt,
		PayloadJSON: payloadJSON,
		Status:      JobStatusQueued,
		DedupeKey:   dedupeKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.jobs[job.ID] = job
	slog.Debug("InMemoryStore EnqueueJob succeeded", "id", job.ID, "kind", kind)
	return job.ID, nil
}

// GetJob retrieves a job by ID, or (nil, nil) when unknown.
func (s *InMemoryStore) GetJob(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return &j, nil
}
