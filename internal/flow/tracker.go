// Package flow implements the conditional survey flow engine.
//
// This file contains the FlowStateTracker: derivation of the available
// question set and the conditional path from a participation's full response
// history.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/models"
	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/store"
)

// DefaultAvailabilityPasses bounds the availability fixed-point loop. A rule
// chain deeper than this yields an incomplete set; the tracker logs a warning
// and reports non-convergence rather than truncating silently.
const DefaultAvailabilityPasses = 10

// FlowStateTracker recomputes a participation's flow state on demand from its
// saved responses and the survey's entire rule set. Flow state is derived,
// never the source of truth.
type FlowStateTracker struct {
	store     store.Store
	evaluator *RuleEvaluator
	maxPasses int
}

// NewFlowStateTracker creates a FlowStateTracker backed by the given store.
func NewFlowStateTracker(st store.Store) *FlowStateTracker {
	return &FlowStateTracker{
		store:     st,
		evaluator: NewRuleEvaluator(st),
		maxPasses: DefaultAvailabilityPasses,
	}
}

// SetMaxPasses overrides the availability pass cap. Values below 1 are ignored.
func (t *FlowStateTracker) SetMaxPasses(n int) {
	if n >= 1 {
		t.maxPasses = n
	}
}

// ComputeAvailableQuestions derives the set of questions currently available
// to the respondent by replaying all prior answers through the survey's rule
// set. The base set is every question not gated behind a show-type rule; each
// pass re-evaluates all answered questions' rules so multi-hop effects (A
// unlocks B, B's answer unlocks C) propagate. The loop runs to a fixed point
// or the pass cap, whichever comes first.
func (t *FlowStateTracker) ComputeAvailableQuestions(ctx context.Context, participationID string) (map[string]bool, bool, error) {
	pctx, err := t.evaluator.BuildParticipationContext(ctx, participationID)
	if err != nil {
		return nil, false, err
	}

	rules, err := t.store.GetSurveyLogic(pctx.SurveyID)
	if err != nil {
		slog.Error("FlowStateTracker.ComputeAvailableQuestions rule fetch failed", "error", err, "surveyID", pctx.SurveyID)
		return nil, false, fmt.Errorf("failed to fetch survey logic for %s: %w", pctx.SurveyID, err)
	}
	active := activeRules(rules)

	questionIDs, err := t.store.GetSurveyQuestionIDs(pctx.SurveyID)
	if err != nil {
		slog.Error("FlowStateTracker.ComputeAvailableQuestions question fetch failed", "error", err, "surveyID", pctx.SurveyID)
		return nil, false, fmt.Errorf("failed to fetch survey questions for %s: %w", pctx.SurveyID, err)
	}

	// Base questions: visible by default, absent any triggered hide.
	showTargets := make(map[string]bool)
	rulesBySource := make(map[string][]models.LogicRule)
	for _, r := range active {
		rulesBySource[r.SourceQuestionID] = append(rulesBySource[r.SourceQuestionID], r)
		if r.LogicType.IsShow() {
			for _, target := range ruleTargets(r) {
				showTargets[target] = true
			}
		}
	}

	available := make(map[string]bool)
	for _, id := range questionIDs {
		if !showTargets[id] {
			available[id] = true
		}
	}

	// Replay answered questions in the order they were answered so a capped
	// run yields the same set on every invocation.
	responses, err := t.store.GetSavedResponses(participationID)
	if err != nil {
		slog.Error("FlowStateTracker.ComputeAvailableQuestions responses fetch failed", "error", err, "participationID", participationID)
		return nil, false, fmt.Errorf("failed to fetch responses for participation %s: %w", participationID, err)
	}
	sort.SliceStable(responses, func(i, j int) bool {
		return responses[i].RespondedAt.Before(responses[j].RespondedAt)
	})
	var answered []string
	seen := make(map[string]bool)
	for _, r := range responses {
		if !seen[r.QuestionID] {
			seen[r.QuestionID] = true
			answered = append(answered, r.QuestionID)
		}
	}

	converged := false
	for pass := 0; pass < t.maxPasses; pass++ {
		changed := false
		for _, questionID := range answered {
			answer := pctx.Responses[questionID]
			for _, rule := range rulesBySource[questionID] {
				if !rule.LogicType.AffectsVisibility() {
					continue
				}
				if !EvaluateCondition(answer, rule, pctx) {
					continue
				}
				for _, target := range ruleTargets(rule) {
					if rule.LogicType.IsShow() {
						if !available[target] {
							available[target] = true
							changed = true
						}
					} else if available[target] {
						delete(available, target)
						changed = true
					}
				}
			}
		}
		if !changed {
			converged = true
			break
		}
	}
	if !converged {
		slog.Warn("FlowStateTracker.ComputeAvailableQuestions did not converge", "participationID", participationID, "maxPasses", t.maxPasses)
	}

	return available, converged, nil
}

// ComputeConditionalPath replays the participation's responses in
// chronological order and records every branching decision that actually
// fired. The result is an audit trail, independent of the availability
// computation.
func (t *FlowStateTracker) ComputeConditionalPath(ctx context.Context, participationID string) ([]models.PathStep, error) {
	pctx, err := t.evaluator.BuildParticipationContext(ctx, participationID)
	if err != nil {
		return nil, err
	}

	responses, err := t.store.GetSavedResponses(participationID)
	if err != nil {
		slog.Error("FlowStateTracker.ComputeConditionalPath responses fetch failed", "error", err, "participationID", participationID)
		return nil, fmt.Errorf("failed to fetch responses for participation %s: %w", participationID, err)
	}
	sort.SliceStable(responses, func(i, j int) bool {
		return responses[i].RespondedAt.Before(responses[j].RespondedAt)
	})

	var path []models.PathStep
	for _, response := range responses {
		rules, err := t.store.GetQuestionLogic(response.QuestionID)
		if err != nil {
			slog.Error("FlowStateTracker.ComputeConditionalPath rule fetch failed", "error", err, "questionID", response.QuestionID)
			return nil, fmt.Errorf("failed to fetch logic rules for question %s: %w", response.QuestionID, err)
		}
		for _, rule := range activeRules(rules) {
			if !EvaluateCondition(response.Answer, rule, pctx) {
				continue
			}
			path = append(path, models.PathStep{
				QuestionID:  response.QuestionID,
				Response:    response.Answer,
				ActionTaken: rule.LogicType,
				Timestamp:   response.RespondedAt,
			})
		}
	}
	return path, nil
}

// ComputeFlowState assembles the full derived snapshot for a participation:
// answered questions, currently available questions, conditional path, and
// completion.
func (t *FlowStateTracker) ComputeFlowState(ctx context.Context, participationID string) (*models.SurveyFlowState, error) {
	participation, err := t.store.GetParticipation(participationID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch participation %s: %w", participationID, err)
	}
	if participation == nil {
		return nil, fmt.Errorf("participation %s not found", participationID)
	}

	available, converged, err := t.ComputeAvailableQuestions(ctx, participationID)
	if err != nil {
		return nil, err
	}

	path, err := t.ComputeConditionalPath(ctx, participationID)
	if err != nil {
		return nil, err
	}

	responses, err := t.store.GetSavedResponses(participationID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch responses for participation %s: %w", participationID, err)
	}
	completedSet := make(map[string]bool)
	for _, r := range responses {
		completedSet[r.QuestionID] = true
	}

	return &models.SurveyFlowState{
		ParticipationID:    participationID,
		SurveyID:           participation.SurveyID,
		CurrentSectionID:   participation.CurrentSectionID,
		CurrentQuestionID:  participation.CurrentQuestionID,
		CompletedQuestions: sortedKeys(completedSet),
		AvailableQuestions: sortedKeys(available),
		ConditionalPath:    path,
		IsComplete:         participation.Status == models.ParticipationStatusCompleted,
		Converged:          converged,
	}, nil
}

// ruleTargets returns the question ids a visibility rule affects.
func ruleTargets(rule models.LogicRule) []string {
	if rule.LogicType == models.LogicShowQuestions {
		return rule.TargetQuestionIDs
	}
	if rule.TargetQuestionID != "" {
		return []string{rule.TargetQuestionID}
	}
	return nil
}

// sortedKeys returns a set's members in sorted order for stable output.
func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
