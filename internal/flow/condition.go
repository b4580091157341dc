// Package flow implements the conditional survey flow engine: condition
// evaluation, per-question branching, flow-state tracking, rule-graph
// analysis, and response validation.
package flow

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/models"
)

// EvaluateCondition applies a rule's condition to a submitted answer. It is a
// pure function: no state, no I/O. A malformed rule never breaks the flow; any
// failure inside a single rule's evaluation is logged and resolves to false.
func EvaluateCondition(submittedValue string, rule models.LogicRule, pctx *models.ParticipationContext) (result bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("EvaluateCondition recovered from panic", "ruleID", rule.ID, "conditionType", rule.ConditionType, "panic", r)
			result = false
		}
	}()

	switch rule.ConditionType {
	case models.ConditionEquals:
		return equalsFold(submittedValue, rule.ConditionValue)

	case models.ConditionNotEquals:
		return !equalsFold(submittedValue, rule.ConditionValue)

	case models.ConditionContains:
		if submittedValue == "" {
			return false
		}
		return strings.Contains(strings.ToLower(submittedValue), strings.ToLower(rule.ConditionValue))

	case models.ConditionGreaterThan:
		value, condition, ok := parsePair(submittedValue, rule.ConditionValue)
		return ok && value > condition

	case models.ConditionLessThan:
		value, condition, ok := parsePair(submittedValue, rule.ConditionValue)
		return ok && value < condition

	case models.ConditionBetween:
		value, err := parseDecimal(submittedValue)
		if err != nil {
			return false
		}
		min, err := parseDecimal(rule.ConditionValue)
		if err != nil {
			return false
		}
		max, err := parseDecimal(rule.ConditionValue2)
		if err != nil {
			return false
		}
		return value >= min && value <= max

	case models.ConditionInList:
		trimmed := strings.TrimSpace(submittedValue)
		for _, item := range strings.Split(rule.ConditionValue, ",") {
			if strings.EqualFold(trimmed, strings.TrimSpace(item)) {
				return true
			}
		}
		return false

	case models.ConditionRegexMatch:
		re, err := regexp.Compile(rule.ConditionValue)
		if err != nil {
			// Fail closed on author-side pattern mistakes.
			slog.Warn("EvaluateCondition invalid regex pattern", "ruleID", rule.ID, "error", err)
			return false
		}
		return re.MatchString(submittedValue)

	case models.ConditionCrossQuestion:
		// Cross-question combinators are not wired up yet; fail closed until
		// the rule builder exposes them.
		slog.Debug("EvaluateCondition cross_question not supported, evaluating to false", "ruleID", rule.ID, "crossQuestionID", rule.CrossQuestionID)
		return false

	default:
		slog.Warn("EvaluateCondition unrecognized condition type", "ruleID", rule.ID, "conditionType", rule.ConditionType)
		return false
	}
}

// equalsFold compares two values trimmed and case-insensitively.
func equalsFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// parseDecimal parses a trimmed string as a decimal number.
func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// parsePair parses both operands of a numeric comparison; ok is false if
// either fails to parse.
func parsePair(a, b string) (av, bv float64, ok bool) {
	av, errA := parseDecimal(a)
	bv, errB := parseDecimal(b)
	return av, bv, errA == nil && errB == nil
}
