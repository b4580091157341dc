// Package flow implements the conditional survey flow engine.
//
// This file contains the RuleEvaluator: per-question branching evaluation
// against a submitted answer.
package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/models"
	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/store"
)

// RuleEvaluator evaluates a question's branching rules against a submitted
// answer. It is stateless; every call fetches fresh rule and response data.
type RuleEvaluator struct {
	store store.Store
}

// NewRuleEvaluator creates a RuleEvaluator backed by the given store.
func NewRuleEvaluator(st store.Store) *RuleEvaluator {
	return &RuleEvaluator{store: st}
}

// EvaluateQuestion fetches the question's active rules, evaluates each against
// the submitted value in store order, and returns the triggered actions.
// Terminal actions (end_survey, jump_to_section) stop further rule processing.
// An error return is distinct from "no actions": callers can tell "nothing
// happened" from "evaluation failed".
func (e *RuleEvaluator) EvaluateQuestion(ctx context.Context, questionID, submittedValue, participationID string) (*models.BranchingEvaluationResult, error) {
	rules, err := e.store.GetQuestionLogic(questionID)
	if err != nil {
		slog.Error("RuleEvaluator.EvaluateQuestion rule fetch failed", "error", err, "questionID", questionID)
		return nil, fmt.Errorf("failed to fetch logic rules for question %s: %w", questionID, err)
	}

	active := activeRules(rules)
	if len(active) == 0 {
		return &models.BranchingEvaluationResult{HasActions: false, Actions: []models.BranchingAction{}}, nil
	}

	pctx, err := e.BuildParticipationContext(ctx, participationID)
	if err != nil {
		return nil, err
	}

	actions := []models.BranchingAction{}
	// Store ordering is authoritative; no secondary sort is imposed.
	for _, rule := range active {
		if !EvaluateCondition(submittedValue, rule, pctx) {
			continue
		}
		action := actionForRule(rule)
		if action.Type == models.LogicNone {
			continue
		}
		actions = append(actions, action)
		slog.Debug("RuleEvaluator.EvaluateQuestion rule triggered", "ruleID", rule.ID, "questionID", questionID, "action", action.Type)
		if action.Type.IsTerminal() {
			// Terminal actions determine the path unambiguously; no later
			// rule may override them.
			break
		}
	}

	return &models.BranchingEvaluationResult{HasActions: len(actions) > 0, Actions: actions}, nil
}

// ProcessResponseBranching evaluates a saved response's branching and executes
// the primary action: section jumps update the participation's position,
// end_survey completes the participation, and show/hide/disqualify are
// client-applied (log only). Returns the primary action, or nil when no rule
// fired.
//
// The primary action is the first action in the evaluation result. Rule order
// is whatever the store returns, so when a terminal rule is not first, the
// primary action may differ from the action that ended the flow.
func (e *RuleEvaluator) ProcessResponseBranching(ctx context.Context, response models.SurveyResponse, participationID string) (*models.BranchingAction, error) {
	result, err := e.EvaluateQuestion(ctx, response.QuestionID, response.Answer, participationID)
	if err != nil {
		return nil, err
	}
	if !result.HasActions {
		return nil, nil
	}

	primary := result.Actions[0]
	switch primary.Type {
	case models.LogicJumpToSection:
		if err := e.store.UpdateParticipationSection(participationID, primary.TargetSectionID); err != nil {
			slog.Error("RuleEvaluator.ProcessResponseBranching section update failed", "error", err, "participationID", participationID)
			return nil, fmt.Errorf("failed to apply section jump: %w", err)
		}
	case models.LogicEndSurvey:
		if err := e.store.CompleteSurvey(participationID); err != nil {
			slog.Error("RuleEvaluator.ProcessResponseBranching completion failed", "error", err, "participationID", participationID)
			return nil, fmt.Errorf("failed to complete survey: %w", err)
		}
	case models.LogicDisqualify:
		slog.Info("RuleEvaluator.ProcessResponseBranching respondent disqualified", "participationID", participationID, "questionID", response.QuestionID)
	default:
		// show/hide/skip actions are applied client-side.
		slog.Debug("RuleEvaluator.ProcessResponseBranching client-applied action", "participationID", participationID, "action", primary.Type)
	}

	return &primary, nil
}

// BuildParticipationContext assembles the ephemeral evaluation context from
// the participation's saved responses. The most recent answer per question
// wins. An unknown participation is a caller-side contract violation and is
// surfaced as an error.
func (e *RuleEvaluator) BuildParticipationContext(ctx context.Context, participationID string) (*models.ParticipationContext, error) {
	participation, err := e.store.GetParticipation(participationID)
	if err != nil {
		slog.Error("RuleEvaluator.BuildParticipationContext fetch failed", "error", err, "participationID", participationID)
		return nil, fmt.Errorf("failed to fetch participation %s: %w", participationID, err)
	}
	if participation == nil {
		return nil, fmt.Errorf("participation %s not found", participationID)
	}

	responses, err := e.store.GetSavedResponses(participationID)
	if err != nil {
		slog.Error("RuleEvaluator.BuildParticipationContext responses fetch failed", "error", err, "participationID", participationID)
		return nil, fmt.Errorf("failed to fetch responses for participation %s: %w", participationID, err)
	}

	return &models.ParticipationContext{
		ParticipationID:   participationID,
		SurveyID:          participation.SurveyID,
		Responses:         latestAnswers(responses),
		CurrentSectionID:  participation.CurrentSectionID,
		CurrentQuestionID: participation.CurrentQuestionID,
	}, nil
}

// actionForRule maps a triggered rule's logic type to a BranchingAction. The
// mapping is exhaustive over the closed LogicType enum; anything else maps to
// LogicNone.
func actionForRule(rule models.LogicRule) models.BranchingAction {
	action := models.BranchingAction{Type: models.LogicNone, Message: rule.ActionMessage()}
	switch rule.LogicType {
	case models.LogicShowQuestion, models.LogicHideQuestion, models.LogicSkipToQuestion:
		action.Type = rule.LogicType
		action.TargetQuestionID = rule.TargetQuestionID
	case models.LogicShowQuestions:
		action.Type = rule.LogicType
		action.TargetQuestionIDs = rule.TargetQuestionIDs
	case models.LogicJumpToSection:
		action.Type = rule.LogicType
		action.TargetSectionID = rule.TargetSectionID
	case models.LogicEndSurvey, models.LogicDisqualify:
		action.Type = rule.LogicType
	case models.LogicNone:
		// no effect
	default:
		slog.Warn("actionForRule unrecognized logic type", "ruleID", rule.ID, "logicType", rule.LogicType)
	}
	return action
}

// activeRules filters out inactive rules, preserving store order.
func activeRules(rules []models.LogicRule) []models.LogicRule {
	var active []models.LogicRule
	for _, r := range rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	return active
}

// latestAnswers reduces a chronological response list to the most recent
// answer per question.
func latestAnswers(responses []models.SurveyResponse) map[string]string {
	answers := make(map[string]string, len(responses))
	latest := make(map[string]int64, len(responses))
	for _, r := range responses {
		ts := r.RespondedAt.UnixNano()
		if prev, ok := latest[r.QuestionID]; ok && ts < prev {
			continue
		}
		latest[r.QuestionID] = ts
		answers[r.QuestionID] = r.Answer
	}
	return answers
}
