// Package models defines the core data structures for the survey flow engine.
//
// It includes logic rules, branching actions, participation context, and the
// derived flow-state structures shared across modules.
package models

import (
	"errors"
	"time"
)

// ConditionType defines the comparison operator a rule's condition uses.
type ConditionType string

const (
	// ConditionEquals matches when the trimmed answer equals the condition value, case-insensitively.
	ConditionEquals ConditionType = "equals"
	// ConditionNotEquals matches when the trimmed answer differs from the condition value.
	ConditionNotEquals ConditionType = "not_equals"
	// ConditionContains matches when the answer contains the condition value as a substring.
	ConditionContains ConditionType = "contains"
	// ConditionGreaterThan matches when the answer parses as a number greater than the condition value.
	ConditionGreaterThan ConditionType = "greater_than"
	// ConditionLessThan matches when the answer parses as a number less than the condition value.
	ConditionLessThan ConditionType = "less_than"
	// ConditionBetween matches when the answer falls within [ConditionValue, ConditionValue2] numerically.
	ConditionBetween ConditionType = "between"
	// ConditionInList matches when the answer equals any element of a comma-separated list.
	ConditionInList ConditionType = "in_list"
	// ConditionRegexMatch matches when the answer matches the condition value as a regular expression.
	ConditionRegexMatch ConditionType = "regex_match"
	// ConditionCrossQuestion evaluates against another question's prior answer.
	// Reserved for future combinators; evaluation currently fails closed.
	ConditionCrossQuestion ConditionType = "cross_question"
)

// IsValidConditionType checks if the given condition type is supported.
func IsValidConditionType(ct ConditionType) bool {
	switch ct {
	case ConditionEquals, ConditionNotEquals, ConditionContains,
		ConditionGreaterThan, ConditionLessThan, ConditionBetween,
		ConditionInList, ConditionRegexMatch, ConditionCrossQuestion:
		return true
	default:
		return false
	}
}

// LogicType defines the flow effect a triggered rule produces.
type LogicType string

const (
	// LogicShowQuestion reveals the target question.
	LogicShowQuestion LogicType = "show_question"
	// LogicHideQuestion hides the target question.
	LogicHideQuestion LogicType = "hide_question"
	// LogicShowQuestions reveals every question in the target list.
	LogicShowQuestions LogicType = "show_questions"
	// LogicJumpToSection moves the participation to the target section.
	LogicJumpToSection LogicType = "jump_to_section"
	// LogicSkipToQuestion advances the participation directly to the target question.
	LogicSkipToQuestion LogicType = "skip_to_question"
	// LogicEndSurvey completes the survey immediately.
	LogicEndSurvey LogicType = "end_survey"
	// LogicDisqualify screens the respondent out of the survey.
	LogicDisqualify LogicType = "disqualify"
	// LogicNone produces no flow effect.
	LogicNone LogicType = "none"
)

// IsValidLogicType checks if the given logic type is supported.
func IsValidLogicType(lt LogicType) bool {
	switch lt {
	case LogicShowQuestion, LogicHideQuestion, LogicShowQuestions,
		LogicJumpToSection, LogicSkipToQuestion, LogicEndSurvey,
		LogicDisqualify, LogicNone:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the logic type halts further rule processing for
// its source question. Terminal actions determine the path unambiguously, so no
// later rule may override them.
func (lt LogicType) IsTerminal() bool {
	switch lt {
	case LogicEndSurvey, LogicJumpToSection:
		return true
	default:
		return false
	}
}

// IsShow reports whether the logic type reveals its target(s).
func (lt LogicType) IsShow() bool {
	switch lt {
	case LogicShowQuestion, LogicShowQuestions:
		return true
	default:
		return false
	}
}

// AffectsVisibility reports whether the logic type contributes an edge to the
// question-reachability graph. Section-level actions (jump/end/disqualify) do
// not; they affect section flow, not question visibility.
func (lt LogicType) AffectsVisibility() bool {
	switch lt {
	case LogicShowQuestion, LogicHideQuestion, LogicShowQuestions:
		return true
	default:
		return false
	}
}

// DefaultActionMessage returns the respondent-facing message for a logic type
// when the rule author configured none.
func DefaultActionMessage(lt LogicType) string {
	switch lt {
	case LogicEndSurvey:
		return "Thank you, you have completed this survey."
	case LogicDisqualify:
		return "Unfortunately you do not qualify for this survey."
	case LogicJumpToSection:
		return "Moving to the next applicable section."
	case LogicSkipToQuestion:
		return "Skipping ahead based on your answer."
	default:
		return ""
	}
}

// Validation error variables for logic rules.
var (
	ErrRuleMissingSource    = errors.New("logic rule requires a source question")
	ErrRuleInvalidCondition = errors.New("unsupported condition type")
	ErrRuleInvalidLogic     = errors.New("unsupported logic type")
	ErrRuleBothTargets      = errors.New("logic rule cannot target a question and a section at once")
	ErrRuleMissingTarget    = errors.New("logic rule requires a target unless it ends the survey")
	ErrRuleSelfReference    = errors.New("logic rule cannot target its own source question")
	ErrRuleMissingRange     = errors.New("between condition requires both bounds")
)

// LogicRule is an author-defined condition+action attached to a source
// question. Rules are created and edited by survey authors and are read-only
// to the flow engine.
type LogicRule struct {
	ID                string        `json:"id"`
	SurveyID          string        `json:"survey_id"`
	SourceQuestionID  string        `json:"source_question_id"`
	ConditionType     ConditionType `json:"condition_type"`
	ConditionValue    string        `json:"condition_value"`
	ConditionValue2   string        `json:"condition_value2,omitempty"` // upper bound for between conditions
	CrossQuestionID   string        `json:"cross_question_id,omitempty"`
	LogicType         LogicType     `json:"logic_type"`
	TargetQuestionID  string        `json:"target_question_id,omitempty"`
	TargetSectionID   string        `json:"target_section_id,omitempty"`
	TargetQuestionIDs []string      `json:"target_question_ids,omitempty"` // for show_questions
	Message           string        `json:"message,omitempty"`
	IsActive          bool          `json:"is_active"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Validate performs structural validation on a LogicRule.
func (r *LogicRule) Validate() error {
	if r.SourceQuestionID == "" {
		return ErrRuleMissingSource
	}
	if !IsValidConditionType(r.ConditionType) {
		return ErrRuleInvalidCondition
	}
	if !IsValidLogicType(r.LogicType) {
		return ErrRuleInvalidLogic
	}
	if r.ConditionType == ConditionBetween && (r.ConditionValue == "" || r.ConditionValue2 == "") {
		return ErrRuleMissingRange
	}
	if r.TargetQuestionID != "" && r.TargetSectionID != "" {
		return ErrRuleBothTargets
	}
	if r.TargetQuestionID == "" && r.TargetSectionID == "" && len(r.TargetQuestionIDs) == 0 {
		// A target-less rule is only meaningful when it terminates or screens out.
		if r.LogicType != LogicEndSurvey && r.LogicType != LogicDisqualify && r.LogicType != LogicNone {
			return ErrRuleMissingTarget
		}
	}
	if r.TargetQuestionID != "" && r.TargetQuestionID == r.SourceQuestionID {
		return ErrRuleSelfReference
	}
	for _, id := range r.TargetQuestionIDs {
		if id == r.SourceQuestionID {
			return ErrRuleSelfReference
		}
	}
	return nil
}

// ActionMessage returns the rule's configured message, falling back to the
// logic type's default.
func (r *LogicRule) ActionMessage() string {
	if r.Message != "" {
		return r.Message
	}
	return DefaultActionMessage(r.LogicType)
}

// BranchingAction is a single flow effect produced by rule evaluation. It is
// consumed by the caller (UI or section-jump handler) and applied to the
// in-memory flow state.
type BranchingAction struct {
	Type              LogicType `json:"type"`
	TargetQuestionID  string    `json:"target_question_id,omitempty"`
	TargetSectionID   string    `json:"target_section_id,omitempty"`
	TargetQuestionIDs []string  `json:"target_question_ids,omitempty"`
	Message           string    `json:"message,omitempty"`
}

// BranchingEvaluationResult is the outcome of evaluating one question's rules
// against a submitted answer.
type BranchingEvaluationResult struct {
	HasActions bool              `json:"has_actions"`
	Actions    []BranchingAction `json:"actions"`
}

// ParticipationContext is the ephemeral evaluation context built per call. It
// carries the participation's most recent answer per question and its current
// position; it is never persisted.
type ParticipationContext struct {
	ParticipationID   string            `json:"participation_id"`
	SurveyID          string            `json:"survey_id"`
	Responses         map[string]string `json:"responses"` // question id -> most recent answer
	CurrentSectionID  string            `json:"current_section_id,omitempty"`
	CurrentQuestionID string            `json:"current_question_id,omitempty"`
}

// AnswerFor returns the most recent answer recorded for a question, and
// whether one exists.
func (c *ParticipationContext) AnswerFor(questionID string) (string, bool) {
	if c == nil || c.Responses == nil {
		return "", false
	}
	answer, ok := c.Responses[questionID]
	return answer, ok
}
