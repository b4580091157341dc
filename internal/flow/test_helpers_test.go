package flow

import (
	"testing"
	"time"

	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/models"
	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/store"
)

// newTestStore creates an in-memory store seeded with one active participation.
func newTestStore(t *testing.T, surveyID, participationID string) *store.InMemoryStore {
	t.Helper()
	st := store.NewInMemoryStore()
	if err := st.SaveParticipation(models.Participation{
		ID:        participationID,
		SurveyID:  surveyID,
		Status:    models.ParticipationStatusActive,
		StartedAt: time.Now(),
	}); err != nil {
		t.Fatalf("failed to seed participation: %v", err)
	}
	return st
}

// addQuestion seeds a question with the given type.
func addQuestion(t *testing.T, st *store.InMemoryStore, surveyID, id string, qt models.QuestionType) {
	t.Helper()
	if err := st.SaveQuestion(models.Question{ID: id, SurveyID: surveyID, Type: qt}); err != nil {
		t.Fatalf("failed to seed question %s: %v", id, err)
	}
}

// addRule seeds an active logic rule.
func addRule(t *testing.T, st *store.InMemoryStore, rule models.LogicRule) {
	t.Helper()
	rule.IsActive = true
	if err := st.AddLogicRule(rule); err != nil {
		t.Fatalf("failed to seed rule: %v", err)
	}
}

// addResponse seeds a saved response at the given timestamp.
func addResponse(t *testing.T, st *store.InMemoryStore, participationID, questionID, answer string, at time.Time) {
	t.Helper()
	if err := st.SaveSurveyResponse(models.SurveyResponse{
		ParticipationID: participationID,
		QuestionID:      questionID,
		Answer:          answer,
		RespondedAt:     at,
	}); err != nil {
		t.Fatalf("failed to seed response for %s: %v", questionID, err)
	}
}
