// Package flow implements the conditional survey flow engine.
//
// This file contains the ResponseValidator: type-specific content validation
// of submitted answers, independent of branching, plus the bounded-retry
// persistence path.
package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/models"
	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/store"
)

// Retry configuration for response persistence.
const (
	// DefaultSaveAttempts is the bounded retry count for SaveWithRetry.
	DefaultSaveAttempts = 3
	// SaveRetryBaseDelay is multiplied by the attempt number between retries
	// (attempt-indexed, not exponential).
	SaveRetryBaseDelay = 500 * time.Millisecond
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^[0-9+()\-\s.]+$`)
	datePattern  = "2006-01-02"
)

// yesNoValues is the closed answer set for yes/no questions.
var yesNoValues = map[string]bool{
	"yes": true, "no": true, "true": true, "false": true, "1": true, "0": true,
}

// ResponseValidator validates a submitted answer's content against the target
// question's type and constraints. Branching is someone else's concern; this
// gate runs before any response is persisted or allowed to affect flow state.
type ResponseValidator struct {
	store          store.Store
	maxAttempts    int
	retryBaseDelay time.Duration
}

// NewResponseValidator creates a ResponseValidator backed by the given store.
func NewResponseValidator(st store.Store) *ResponseValidator {
	return &ResponseValidator{
		store:          st,
		maxAttempts:    DefaultSaveAttempts,
		retryBaseDelay: SaveRetryBaseDelay,
	}
}

// Validate checks a response's content against its question's constraints.
// Malformed or out-of-range answers are recovered locally: they come back as
// human-readable error strings, never as an error return. The error return is
// reserved for contract violations (unknown question) and store failures.
func (v *ResponseValidator) Validate(ctx context.Context, response models.SurveyResponse) (models.ValidationResult, error) {
	result := models.ValidationResult{IsValid: true}

	question, err := v.store.GetQuestion(response.QuestionID)
	if err != nil {
		slog.Error("ResponseValidator.Validate question fetch failed", "error", err, "questionID", response.QuestionID)
		return result, fmt.Errorf("failed to fetch question %s: %w", response.QuestionID, err)
	}
	if question == nil {
		return result, fmt.Errorf("question %s not found", response.QuestionID)
	}

	answer := strings.TrimSpace(response.Answer)
	if question.IsMandatory && answer == "" {
		result.AddError("This question is required")
		return result, nil
	}

	switch question.Type {
	case models.QuestionShortText, models.QuestionLongText:
		v.validateText(answer, question, &result)
	case models.QuestionSingleChoice:
		if err := v.validateSingleChoice(answer, question, &result); err != nil {
			return result, err
		}
	case models.QuestionMultipleChoice:
		if err := v.validateMultipleChoice(response.Answer, question, &result); err != nil {
			return result, err
		}
	case models.QuestionRating, models.QuestionSlider, models.QuestionNumberInput:
		v.validateNumeric(answer, question, &result)
	case models.QuestionMatrix:
		if err := v.validateMatrix(answer, response.MatrixRowID, question, &result); err != nil {
			return result, err
		}
	case models.QuestionDate:
		v.validateDate(answer, &result)
	case models.QuestionEmail:
		if answer != "" && !emailPattern.MatchString(answer) {
			result.AddError("Answer must be a valid email address")
		}
	case models.QuestionPhone:
		v.validatePhone(answer, &result)
	case models.QuestionYesNo:
		if answer != "" && !yesNoValues[strings.ToLower(answer)] {
			result.AddError("Answer must be yes or no")
		}
	default:
		// Unmodeled question types are not this gate's business; fail open.
		slog.Debug("ResponseValidator.Validate unmodeled question type, accepting", "questionID", question.ID, "type", question.Type)
	}

	return result, nil
}

func (v *ResponseValidator) validateText(answer string, q *models.Question, result *models.ValidationResult) {
	if q.MinLength > 0 && len(answer) < q.MinLength {
		result.AddError(fmt.Sprintf("Answer must be at least %d characters", q.MinLength))
	}
	if q.MaxLength > 0 && len(answer) > q.MaxLength {
		result.AddError(fmt.Sprintf("Answer must be no more than %d characters", q.MaxLength))
	}
	if q.ValidationRegex != "" {
		re, err := regexp.Compile(q.ValidationRegex)
		if err != nil {
			// An author-side pattern mistake must not block the respondent.
			slog.Warn("ResponseValidator.validateText invalid validation regex, skipping", "questionID", q.ID, "error", err)
			return
		}
		if !re.MatchString(answer) {
			msg := q.ValidationMessage
			if msg == "" {
				msg = "Answer does not match the required format"
			}
			result.AddError(msg)
		}
	}
}

func (v *ResponseValidator) validateSingleChoice(answer string, q *models.Question, result *models.ValidationResult) error {
	if answer == "" {
		// Empty is valid unless mandatory, which was checked earlier.
		return nil
	}
	choices, err := v.store.GetChoices(q.ID)
	if err != nil {
		slog.Error("ResponseValidator.validateSingleChoice choice fetch failed", "error", err, "questionID", q.ID)
		return fmt.Errorf("failed to fetch choices for question %s: %w", q.ID, err)
	}
	if !matchesChoice(answer, choices) {
		result.AddError("Selected option is not valid for this question")
	}
	return nil
}

func (v *ResponseValidator) validateMultipleChoice(raw string, q *models.Question, result *models.ValidationResult) error {
	var selected []string
	if err := json.Unmarshal([]byte(raw), &selected); err != nil {
		result.AddError("Invalid answer format: expected a list of selected options")
		return nil
	}

	choices, err := v.store.GetChoices(q.ID)
	if err != nil {
		slog.Error("ResponseValidator.validateMultipleChoice choice fetch failed", "error", err, "questionID", q.ID)
		return fmt.Errorf("failed to fetch choices for question %s: %w", q.ID, err)
	}

	exclusiveSelected := false
	for _, value := range selected {
		choice, ok := findChoice(value, choices)
		if !ok {
			result.AddError(fmt.Sprintf("Selected option %q is not valid for this question", value))
			continue
		}
		if choice.IsExclusive {
			exclusiveSelected = true
		}
	}
	if exclusiveSelected && len(selected) > 1 {
		result.AddError("Cannot select other options when an exclusive option is selected")
	}
	return nil
}

func (v *ResponseValidator) validateNumeric(answer string, q *models.Question, result *models.ValidationResult) {
	if answer == "" {
		return
	}
	value, err := parseDecimal(answer)
	if err != nil {
		result.AddError("Answer must be a number")
		return
	}
	min, max, ok := q.Range()
	if !ok {
		return
	}
	if value < min {
		result.AddError(fmt.Sprintf("Answer must be at least %g", min))
	}
	if value > max {
		result.AddError(fmt.Sprintf("Answer must be no more than %g", max))
	}
}

func (v *ResponseValidator) validateMatrix(answer, matrixRowID string, q *models.Question, result *models.ValidationResult) error {
	if matrixRowID == "" {
		result.AddError("Matrix answers must reference a row")
		return nil
	}
	rows, err := v.store.GetMatrixRows(q.ID)
	if err != nil {
		slog.Error("ResponseValidator.validateMatrix row fetch failed", "error", err, "questionID", q.ID)
		return fmt.Errorf("failed to fetch matrix rows for question %s: %w", q.ID, err)
	}
	rowFound := false
	for _, row := range rows {
		if row.ID == matrixRowID {
			rowFound = true
			break
		}
	}
	if !rowFound {
		result.AddError("Matrix row does not exist for this question")
	}

	columns, err := v.store.GetMatrixColumns(q.ID)
	if err != nil {
		slog.Error("ResponseValidator.validateMatrix column fetch failed", "error", err, "questionID", q.ID)
		return fmt.Errorf("failed to fetch matrix columns for question %s: %w", q.ID, err)
	}
	columnFound := false
	for _, column := range columns {
		if strings.EqualFold(column.Value, answer) || column.ID == answer {
			columnFound = true
			break
		}
	}
	if !columnFound {
		result.AddError("Matrix column value does not exist for this question")
	}
	return nil
}

func (v *ResponseValidator) validateDate(answer string, result *models.ValidationResult) {
	if answer == "" {
		return
	}
	if _, err := time.Parse(datePattern, answer); err == nil {
		return
	}
	if _, err := time.Parse(time.RFC3339, answer); err == nil {
		return
	}
	result.AddError("Answer must be a valid date")
}

func (v *ResponseValidator) validatePhone(answer string, result *models.ValidationResult) {
	if answer == "" {
		return
	}
	if !phonePattern.MatchString(answer) {
		result.AddError("Answer must be a valid phone number")
		return
	}
	digits := 0
	for _, c := range answer {
		if c >= '0' && c <= '9' {
			digits++
		}
	}
	if digits < 10 {
		result.AddError("Phone number must contain at least 10 digits")
	}
}

// SaveWithRetry persists a response, retrying up to maxAttempts times with an
// attempt-indexed delay between attempts. The wait is a cooperative suspension
// point: cancelling the context aborts the retry loop mid-wait. Exhaustion is
// reported as false, not an error, so callers can present a retry prompt.
func (v *ResponseValidator) SaveWithRetry(ctx context.Context, response models.SurveyResponse) bool {
	for attempt := 1; attempt <= v.maxAttempts; attempt++ {
		err := v.store.SaveSurveyResponse(response)
		if err == nil {
			if attempt > 1 {
				slog.Info("ResponseValidator.SaveWithRetry succeeded after retry", "responseID", response.ID, "attempt", attempt)
			}
			return true
		}
		slog.Warn("ResponseValidator.SaveWithRetry attempt failed", "error", err, "responseID", response.ID, "attempt", attempt)
		if attempt == v.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			slog.Warn("ResponseValidator.SaveWithRetry cancelled", "responseID", response.ID)
			return false
		case <-time.After(time.Duration(attempt) * v.retryBaseDelay):
		}
	}
	slog.Error("ResponseValidator.SaveWithRetry exhausted attempts", "responseID", response.ID, "maxAttempts", v.maxAttempts)
	return false
}

// SaveBatch validates every response first, persists only the valid subset,
// and reports counts plus per-question failure reasons for the rest. Partial
// success is expected, not an error.
func (v *ResponseValidator) SaveBatch(ctx context.Context, responses []models.SurveyResponse) (models.BatchResponseResult, error) {
	result := models.BatchResponseResult{}

	for _, response := range responses {
		validation, err := v.Validate(ctx, response)
		if err != nil {
			return result, err
		}
		if !validation.IsValid {
			result.FailedResponses = append(result.FailedResponses, models.FailedResponse{
				QuestionID: response.QuestionID,
				Errors:     validation.Errors,
			})
			continue
		}
		result.ValidResponses = append(result.ValidResponses, response)
	}

	for _, response := range result.ValidResponses {
		if v.SaveWithRetry(ctx, response) {
			result.SuccessCount++
		} else {
			result.FailedResponses = append(result.FailedResponses, models.FailedResponse{
				QuestionID: response.QuestionID,
				Errors:     []string{"Could not save this answer, please try again"},
			})
		}
	}

	slog.Debug("ResponseValidator.SaveBatch finished", "total", len(responses), "saved", result.SuccessCount, "failed", len(result.FailedResponses))
	return result, nil
}

// matchesChoice reports whether the answer matches any choice's id or value.
func matchesChoice(answer string, choices []models.Choice) bool {
	_, ok := findChoice(answer, choices)
	return ok
}

// findChoice returns the choice whose id or value matches the answer.
func findChoice(answer string, choices []models.Choice) (models.Choice, bool) {
	for _, c := range choices {
		if c.ID == answer || strings.EqualFold(c.Value, answer) {
			return c, true
		}
	}
	return models.Choice{}, false
}
