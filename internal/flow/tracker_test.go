package flow

import (
	"context"
	"testing"
	"time"

	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/models"
)

func TestComputeAvailableQuestionsBaseSet(t *testing.T) {
	st := newTestStore(t, "s1", "p1")
	addQuestion(t, st, "s1", "q1", models.QuestionYesNo)
	addQuestion(t, st, "s1", "q2", models.QuestionShortText)
	addQuestion(t, st, "s1", "q3", models.QuestionShortText)
	addRule(t, st, models.LogicRule{
		ID: "r1", SurveyID: "s1", SourceQuestionID: "q1",
		ConditionType: models.ConditionEquals, ConditionValue: "yes",
		LogicType: models.LogicShowQuestion, TargetQuestionID: "q3",
	})

	tracker := NewFlowStateTracker(st)
	available, converged, err := tracker.ComputeAvailableQuestions(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ComputeAvailableQuestions returned error: %v", err)
	}
	if !converged {
		t.Error("expected convergence")
	}
	if !available["q1"] || !available["q2"] {
		t.Errorf("base questions missing from %v", available)
	}
	if available["q3"] {
		t.Error("show-gated q3 should not be in the base set before q1 is answered")
	}
}

func TestComputeAvailableQuestionsMultiHopChain(t *testing.T) {
	st := newTestStore(t, "s1", "p1")
	addQuestion(t, st, "s1", "q1", models.QuestionYesNo)
	addQuestion(t, st, "s1", "q2", models.QuestionYesNo)
	addQuestion(t, st, "s1", "q3", models.QuestionShortText)
	addRule(t, st, models.LogicRule{
		ID: "r1", SurveyID: "s1", SourceQuestionID: "q1",
		ConditionType: models.ConditionEquals, ConditionValue: "yes",
		LogicType: models.LogicShowQuestion, TargetQuestionID: "q2",
	})
	addRule(t, st, models.LogicRule{
		ID: "r2", SurveyID: "s1", SourceQuestionID: "q2",
		ConditionType: models.ConditionEquals, ConditionValue: "yes",
		LogicType: models.LogicShowQuestion, TargetQuestionID: "q3",
	})

	base := time.Now()
	addResponse(t, st, "p1", "q1", "yes", base)
	addResponse(t, st, "p1", "q2", "yes", base.Add(time.Minute))

	tracker := NewFlowStateTracker(st)
	available, converged, err := tracker.ComputeAvailableQuestions(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ComputeAvailableQuestions returned error: %v", err)
	}
	if !converged {
		t.Error("expected convergence")
	}
	for _, id := range []string{"q1", "q2", "q3"} {
		if !available[id] {
			t.Errorf("expected %s available after chained answers, got %v", id, available)
		}
	}
}

func TestComputeAvailableQuestionsHideRemoves(t *testing.T) {
	st := newTestStore(t, "s1", "p1")
	addQuestion(t, st, "s1", "q1", models.QuestionYesNo)
	addQuestion(t, st, "s1", "q2", models.QuestionShortText)
	addRule(t, st, models.LogicRule{
		ID: "r1", SurveyID: "s1", SourceQuestionID: "q1",
		ConditionType: models.ConditionEquals, ConditionValue: "no",
		LogicType: models.LogicHideQuestion, TargetQuestionID: "q2",
	})
	addResponse(t, st, "p1", "q1", "no", time.Now())

	tracker := NewFlowStateTracker(st)
	available, _, err := tracker.ComputeAvailableQuestions(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ComputeAvailableQuestions returned error: %v", err)
	}
	if available["q2"] {
		t.Error("q2 should be hidden after triggered hide rule")
	}
	if !available["q1"] {
		t.Error("q1 should remain available")
	}
}

func TestComputeAvailableQuestionsIdempotent(t *testing.T) {
	st := newTestStore(t, "s1", "p1")
	addQuestion(t, st, "s1", "q1", models.QuestionYesNo)
	addQuestion(t, st, "s1", "q2", models.QuestionShortText)
	addRule(t, st, models.LogicRule{
		ID: "r1", SurveyID: "s1", SourceQuestionID: "q1",
		ConditionType: models.ConditionEquals, ConditionValue: "yes",
		LogicType: models.LogicShowQuestion, TargetQuestionID: "q2",
	})
	addResponse(t, st, "p1", "q1", "yes", time.Now())

	tracker := NewFlowStateTracker(st)
	first, _, err := tracker.ComputeAvailableQuestions(context.Background(), "p1")
	if err != nil {
		t.Fatalf("first computation failed: %v", err)
	}
	second, _, err := tracker.ComputeAvailableQuestions(context.Background(), "p1")
	if err != nil {
		t.Fatalf("second computation failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("repeated computation diverged: %v vs %v", first, second)
	}
	for id := range first {
		if !second[id] {
			t.Errorf("repeated computation lost %s", id)
		}
	}
}

func TestComputeAvailableQuestionsNonConvergence(t *testing.T) {
	st := newTestStore(t, "s1", "p1")
	addQuestion(t, st, "s1", "q1", models.QuestionYesNo)
	addQuestion(t, st, "s1", "q2", models.QuestionYesNo)
	addQuestion(t, st, "s1", "q3", models.QuestionShortText)
	// q1's answer shows q3 while q2's answer hides it; with both answered
	// yes, every pass flips q3 and the loop hits its cap.
	addRule(t, st, models.LogicRule{
		ID: "r1", SurveyID: "s1", SourceQuestionID: "q1",
		ConditionType: models.ConditionEquals, ConditionValue: "yes",
		LogicType: models.LogicShowQuestion, TargetQuestionID: "q3",
	})
	addRule(t, st, models.LogicRule{
		ID: "r2", SurveyID: "s1", SourceQuestionID: "q2",
		ConditionType: models.ConditionEquals, ConditionValue: "yes",
		LogicType: models.LogicHideQuestion, TargetQuestionID: "q3",
	})

	base := time.Now()
	addResponse(t, st, "p1", "q1", "yes", base)
	addResponse(t, st, "p1", "q2", "yes", base.Add(time.Minute))

	tracker := NewFlowStateTracker(st)
	first, converged, err := tracker.ComputeAvailableQuestions(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ComputeAvailableQuestions returned error: %v", err)
	}
	if converged {
		t.Error("oscillating show/hide pair should not converge")
	}

	// Answers replay in chronological order, so the capped result is the
	// same on every invocation.
	second, _, err := tracker.ComputeAvailableQuestions(context.Background(), "p1")
	if err != nil {
		t.Fatalf("second computation failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("capped computation diverged: %v vs %v", first, second)
	}
	for id := range first {
		if !second[id] {
			t.Errorf("capped computation lost %s", id)
		}
	}
	if first["q3"] {
		t.Errorf("q3's last replayed rule is the hide, so it should end hidden: %v", first)
	}
}

func TestComputeConditionalPathChronological(t *testing.T) {
	st := newTestStore(t, "s1", "p1")
	addQuestion(t, st, "s1", "q1", models.QuestionYesNo)
	addQuestion(t, st, "s1", "q2", models.QuestionYesNo)
	addRule(t, st, models.LogicRule{
		ID: "r1", SurveyID: "s1", SourceQuestionID: "q1",
		ConditionType: models.ConditionEquals, ConditionValue: "yes",
		LogicType: models.LogicShowQuestion, TargetQuestionID: "q2",
	})
	addRule(t, st, models.LogicRule{
		ID: "r2", SurveyID: "s1", SourceQuestionID: "q2",
		ConditionType: models.ConditionEquals, ConditionValue: "no",
		LogicType: models.LogicEndSurvey,
	})

	base := time.Now()
	// Seeded out of order; the path must still come back chronological.
	addResponse(t, st, "p1", "q2", "no", base.Add(time.Minute))
	addResponse(t, st, "p1", "q1", "yes", base)

	tracker := NewFlowStateTracker(st)
	path, err := tracker.ComputeConditionalPath(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ComputeConditionalPath returned error: %v", err)
	}
	if len(path) != 2 {
		t.Fatalf("expected 2 path steps, got %d: %v", len(path), path)
	}
	if path[0].QuestionID != "q1" || path[0].ActionTaken != models.LogicShowQuestion {
		t.Errorf("first step = %+v, want q1 show_question", path[0])
	}
	if path[1].QuestionID != "q2" || path[1].ActionTaken != models.LogicEndSurvey {
		t.Errorf("second step = %+v, want q2 end_survey", path[1])
	}
}

func TestComputeFlowState(t *testing.T) {
	st := newTestStore(t, "s1", "p1")
	addQuestion(t, st, "s1", "q1", models.QuestionYesNo)
	addQuestion(t, st, "s1", "q2", models.QuestionShortText)
	addResponse(t, st, "p1", "q1", "yes", time.Now())

	tracker := NewFlowStateTracker(st)
	state, err := tracker.ComputeFlowState(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ComputeFlowState returned error: %v", err)
	}
	if state.SurveyID != "s1" || state.ParticipationID != "p1" {
		t.Errorf("identity fields wrong: %+v", state)
	}
	if len(state.CompletedQuestions) != 1 || state.CompletedQuestions[0] != "q1" {
		t.Errorf("CompletedQuestions = %v, want [q1]", state.CompletedQuestions)
	}
	if len(state.AvailableQuestions) != 2 {
		t.Errorf("AvailableQuestions = %v, want both base questions", state.AvailableQuestions)
	}
	if state.IsComplete {
		t.Error("participation should not be complete")
	}
	if !state.Converged {
		t.Error("expected converged flow state")
	}
}

func TestComputeFlowStateUnknownParticipation(t *testing.T) {
	st := newTestStore(t, "s1", "p1")
	tracker := NewFlowStateTracker(st)
	if _, err := tracker.ComputeFlowState(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown participation")
	}
}

func TestSetMaxPassesIgnoresInvalid(t *testing.T) {
	st := newTestStore(t, "s1", "p1")
	tracker := NewFlowStateTracker(st)
	tracker.SetMaxPasses(0)
	if tracker.maxPasses != DefaultAvailabilityPasses {
		t.Errorf("maxPasses = %d, want default %d", tracker.maxPasses, DefaultAvailabilityPasses)
	}
	tracker.SetMaxPasses(3)
	if tracker.maxPasses != 3 {
		t.Errorf("maxPasses = %d, want 3", tracker.maxPasses)
	}
}
