// Package models defines derived flow-state and analysis structures.
//
// Everything in this file is recomputed on demand from saved responses and the
// rule set; none of it is a source of truth.
package models

import "time"

// PathStep is one entry of the conditional path: a branching decision that
// actually fired for a saved response, in chronological order.
type PathStep struct {
	QuestionID  string    `json:"question_id"`
	Response    string    `json:"response"`
	ActionTaken LogicType `json:"action_taken"`
	Timestamp   time.Time `json:"timestamp"`
}

// SurveyFlowState is the derived snapshot of a participation's position in the
// survey flow.
type SurveyFlowState struct {
	ParticipationID    string     `json:"participation_id"`
	SurveyID           string     `json:"survey_id"`
	CurrentSectionID   string     `json:"current_section_id,omitempty"`
	CurrentQuestionID  string     `json:"current_question_id,omitempty"`
	CompletedQuestions []string   `json:"completed_questions"`
	AvailableQuestions []string   `json:"available_questions"`
	ConditionalPath    []PathStep `json:"conditional_path"`
	IsComplete         bool       `json:"is_complete"`
	// Converged is false when availability propagation hit its pass cap
	// before reaching a fixed point; the available set may be incomplete.
	Converged bool `json:"converged"`
}

// ValidationResult is the outcome of validating one response's content.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

// AddError appends a human-readable validation error and marks the result
// invalid.
func (v *ValidationResult) AddError(msg string) {
	v.IsValid = false
	v.Errors = append(v.Errors, msg)
}

// ResponseValidationResult is the full outcome of processing one submitted
// response: content validity, persistence, screening outcome, and the primary
// branching action for the caller to apply.
type ResponseValidationResult struct {
	IsValid             bool             `json:"is_valid"`
	Errors              []string         `json:"errors,omitempty"`
	ResponseID          string           `json:"response_id,omitempty"`
	IsScreeningResponse bool             `json:"is_screening_response"`
	ScreeningResult     string           `json:"screening_result,omitempty"`
	NextAction          *BranchingAction `json:"next_action,omitempty"`
}

// FailedResponse reports why one response of a batch was rejected.
type FailedResponse struct {
	QuestionID string   `json:"question_id"`
	Errors     []string `json:"errors"`
}

// BatchResponseResult reports the outcome of a batch save. Partial success is
// expected: valid responses are persisted, invalid ones are reported.
type BatchResponseResult struct {
	ValidResponses  []SurveyResponse `json:"valid_responses"`
	FailedResponses []FailedResponse `json:"failed_responses"`
	SuccessCount    int              `json:"success_count"`
}

// GraphAnalysisReport lists the structural defects found in one survey's rule
// set. The findings are advisory; enforcement is a publishing-policy decision.
type GraphAnalysisReport struct {
	SurveyID             string   `json:"survey_id"`
	Cycles               []string `json:"cycles"`
	UnreachableQuestions []string `json:"unreachable_questions"`
	InvalidTargets       []string `json:"invalid_targets"`
	// Converged is false when reachability propagation hit its pass cap.
	Converged bool `json:"converged"`
}

// HasDefects reports whether any structural problem was found.
func (r *GraphAnalysisReport) HasDefects() bool {
	return len(r.Cycles) > 0 || len(r.UnreachableQuestions) > 0 || len(r.InvalidTargets) > 0
}

// FlowNode is one question node of the flow visualization.
type FlowNode struct {
	QuestionID string `json:"question_id"`
	RuleCount  int    `json:"rule_count"`
}

// FlowEdge is one conditional visibility edge of the flow visualization.
type FlowEdge struct {
	From          string        `json:"from"`
	To            string        `json:"to"`
	LogicType     LogicType     `json:"logic_type"`
	ConditionType ConditionType `json:"condition_type"`
	Condition     string        `json:"condition,omitempty"`
}

// SurveyFlowVisualization is the renderable structure of a survey's rule
// graph, consumed by authoring tools.
type SurveyFlowVisualization struct {
	SurveyID          string     `json:"survey_id"`
	Nodes             []FlowNode `json:"nodes"`
	Edges             []FlowEdge `json:"edges"`
	DecisionPoints    []string   `json:"decision_points"`
	EndPoints         []string   `json:"end_points"`
	OrphanedQuestions []string   `json:"orphaned_questions"`
}
