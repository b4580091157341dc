package flow

import (
	"context"
	"testing"
	"time"

	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/models"
)

func TestEvaluateQuestionNoRules(t *testing.T) {
	st := newTestStore(t, "s1", "p1")
	addQuestion(t, st, "s1", "q1", models.QuestionShortText)

	ev := NewRuleEvaluator(st)
	result, err := ev.EvaluateQuestion(context.Background(), "q1", "anything", "p1")
	if err != nil {
		t.Fatalf("EvaluateQuestion returned error: %v", err)
	}
	if result.HasActions {
		t.Errorf("expected no actions, got %v", result.Actions)
	}
	if result.Actions == nil {
		t.Error("expected empty non-nil actions slice")
	}
}

func TestEvaluateQuestionTerminalShortCircuit(t *testing.T) {
	st := newTestStore(t, "s1", "p1")
	addQuestion(t, st, "s1", "q1", models.QuestionYesNo)

	addRule(t, st, models.LogicRule{
		ID: "r1", SurveyID: "s1", SourceQuestionID: "q1",
		ConditionType: models.ConditionEquals, ConditionValue: "yes",
		LogicType: models.LogicShowQuestion, TargetQuestionID: "q2",
	})
	addRule(t, st, models.LogicRule{
		ID: "r2", SurveyID: "s1", SourceQuestionID: "q1",
		ConditionType: models.ConditionEquals, ConditionValue: "yes",
		LogicType: models.LogicEndSurvey,
	})
	addRule(t, st, models.LogicRule{
		ID: "r3", SurveyID: "s1", SourceQuestionID: "q1",
		ConditionType: models.ConditionEquals, ConditionValue: "yes",
		LogicType: models.LogicShowQuestion, TargetQuestionID: "q3",
	})

	ev := NewRuleEvaluator(st)
	result, err := ev.EvaluateQuestion(context.Background(), "q1", "yes", "p1")
	if err != nil {
		t.Fatalf("EvaluateQuestion returned error: %v", err)
	}
	if len(result.Actions) != 2 {
		t.Fatalf("expected 2 actions (show then end), got %d: %v", len(result.Actions), result.Actions)
	}
	if result.Actions[0].Type != models.LogicShowQuestion || result.Actions[0].TargetQuestionID != "q2" {
		t.Errorf("first action = %+v, want show_question q2", result.Actions[0])
	}
	if result.Actions[1].Type != models.LogicEndSurvey {
		t.Errorf("second action = %+v, want end_survey", result.Actions[1])
	}
}

func TestEvaluateQuestionSkipsInactiveAndUnmatched(t *testing.T) {
	st := newTestStore(t, "s1", "p1")
	addQuestion(t, st, "s1", "q1", models.QuestionYesNo)

	inactive := models.LogicRule{
		ID: "r1", SurveyID: "s1", SourceQuestionID: "q1",
		ConditionType: models.ConditionEquals, ConditionValue: "yes",
		LogicType: models.LogicEndSurvey,
	}
	if err := st.AddLogicRule(inactive); err != nil {
		t.Fatalf("failed to seed inactive rule: %v", err)
	}
	addRule(t, st, models.LogicRule{
		ID: "r2", SurveyID: "s1", SourceQuestionID: "q1",
		ConditionType: models.ConditionEquals, ConditionValue: "no",
		LogicType: models.LogicHideQuestion, TargetQuestionID: "q2",
	})

	ev := NewRuleEvaluator(st)
	result, err := ev.EvaluateQuestion(context.Background(), "q1", "yes", "p1")
	if err != nil {
		t.Fatalf("EvaluateQuestion returned error: %v", err)
	}
	if result.HasActions {
		t.Errorf("expected no actions, got %v", result.Actions)
	}
	if result.Actions == nil {
		t.Error("unfired rules should still yield an empty non-nil actions slice")
	}
}

func TestEvaluateQuestionUnknownParticipation(t *testing.T) {
	st := newTestStore(t, "s1", "p1")
	addQuestion(t, st, "s1", "q1", models.QuestionYesNo)
	addRule(t, st, models.LogicRule{
		ID: "r1", SurveyID: "s1", SourceQuestionID: "q1",
		ConditionType: models.ConditionEquals, ConditionValue: "yes",
		LogicType: models.LogicEndSurvey,
	})

	ev := NewRuleEvaluator(st)
	if _, err := ev.EvaluateQuestion(context.Background(), "q1", "yes", "missing"); err == nil {
		t.Error("expected error for unknown participation")
	}
}

func TestProcessResponseBranchingJumpToSection(t *testing.T) {
	st := newTestStore(t, "s1", "p1")
	addQuestion(t, st, "s1", "q1", models.QuestionYesNo)
	addRule(t, st, models.LogicRule{
		ID: "r1", SurveyID: "s1", SourceQuestionID: "q1",
		ConditionType: models.ConditionEquals, ConditionValue: "yes",
		LogicType: models.LogicJumpToSection, TargetSectionID: "sec2",
	})

	ev := NewRuleEvaluator(st)
	response := models.SurveyResponse{ParticipationID: "p1", QuestionID: "q1", Answer: "yes", RespondedAt: time.Now()}
	action, err := ev.ProcessResponseBranching(context.Background(), response, "p1")
	if err != nil {
		t.Fatalf("ProcessResponseBranching returned error: %v", err)
	}
	if action == nil || action.Type != models.LogicJumpToSection {
		t.Fatalf("primary action = %+v, want jump_to_section", action)
	}

	p, err := st.GetParticipation("p1")
	if err != nil {
		t.Fatalf("GetParticipation failed: %v", err)
	}
	if p.CurrentSectionID != "sec2" {
		t.Errorf("CurrentSectionID = %q, want sec2", p.CurrentSectionID)
	}
}

func TestProcessResponseBranchingEndSurvey(t *testing.T) {
	st := newTestStore(t, "s1", "p1")
	addQuestion(t, st, "s1", "q1", models.QuestionYesNo)
	addRule(t, st, models.LogicRule{
		ID: "r1", SurveyID: "s1", SourceQuestionID: "q1",
		ConditionType: models.ConditionEquals, ConditionValue: "no",
		LogicType: models.LogicEndSurvey,
	})

	ev := NewRuleEvaluator(st)
	response := models.SurveyResponse{ParticipationID: "p1", QuestionID: "q1", Answer: "no", RespondedAt: time.Now()}
	action, err := ev.ProcessResponseBranching(context.Background(), response, "p1")
	if err != nil {
		t.Fatalf("ProcessResponseBranching returned error: %v", err)
	}
	if action == nil || action.Type != models.LogicEndSurvey {
		t.Fatalf("primary action = %+v, want end_survey", action)
	}

	p, err := st.GetParticipation("p1")
	if err != nil {
		t.Fatalf("GetParticipation failed: %v", err)
	}
	if p.Status != models.ParticipationStatusCompleted {
		t.Errorf("Status = %q, want completed", p.Status)
	}
}

func TestProcessResponseBranchingNoRuleFired(t *testing.T) {
	st := newTestStore(t, "s1", "p1")
	addQuestion(t, st, "s1", "q1", models.QuestionYesNo)

	ev := NewRuleEvaluator(st)
	response := models.SurveyResponse{ParticipationID: "p1", QuestionID: "q1", Answer: "yes", RespondedAt: time.Now()}
	action, err := ev.ProcessResponseBranching(context.Background(), response, "p1")
	if err != nil {
		t.Fatalf("ProcessResponseBranching returned error: %v", err)
	}
	if action != nil {
		t.Errorf("expected nil action, got %+v", action)
	}
}

func TestBuildParticipationContextLatestAnswerWins(t *testing.T) {
	st := newTestStore(t, "s1", "p1")
	base := time.Now()
	addResponse(t, st, "p1", "q1", "first", base)
	addResponse(t, st, "p1", "q1", "second", base.Add(time.Minute))
	addResponse(t, st, "p1", "q2", "other", base.Add(2*time.Minute))

	ev := NewRuleEvaluator(st)
	pctx, err := ev.BuildParticipationContext(context.Background(), "p1")
	if err != nil {
		t.Fatalf("BuildParticipationContext returned error: %v", err)
	}
	if pctx.SurveyID != "s1" {
		t.Errorf("SurveyID = %q, want s1", pctx.SurveyID)
	}
	if got := pctx.Responses["q1"]; got != "second" {
		t.Errorf("Responses[q1] = %q, want second", got)
	}
	if got := pctx.Responses["q2"]; got != "other" {
		t.Errorf("Responses[q2] = %q, want other", got)
	}
}

func TestActionForRuleMessages(t *testing.T) {
	rule := models.LogicRule{
		ID: "r1", LogicType: models.LogicDisqualify,
		ConditionType: models.ConditionEquals, ConditionValue: "no",
		SourceQuestionID: "q1",
	}
	action := actionForRule(rule)
	if action.Type != models.LogicDisqualify {
		t.Fatalf("action type = %s, want disqualify", action.Type)
	}
	if action.Message == "" {
		t.Error("expected default disqualify message")
	}

	rule.Message = "Thanks, but this study needs smokers."
	action = actionForRule(rule)
	if action.Message != rule.Message {
		t.Errorf("Message = %q, want author override", action.Message)
	}
}
