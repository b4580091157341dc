// Package flow implements the conditional survey flow engine.
//
// This file contains the ResponseProcessor: the pipeline tying validation,
// persistence, and branching together for a single submitted answer.
package flow

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/models"
	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/store"
	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/util"
)

// JobKindPostResponseEffects is the job kind for post-response side effects
// (gamification, notifications). Consumed by the external scheduler.
const JobKindPostResponseEffects = "post_response_effects"

// ScreeningResultDisqualified marks a response that screened the respondent out.
const ScreeningResultDisqualified = "disqualified"

// postResponsePayload is the enqueue payload for post-response side effects.
type postResponsePayload struct {
	ParticipationID string `json:"participation_id"`
	QuestionID      string `json:"question_id"`
	ResponseID      string `json:"response_id"`
}

// ResponseProcessor runs a submitted answer through the full pipeline:
// content validation gates persistence, persistence gates branching, and side
// effects are fired as detached background work that can never block or fail
// the call path.
type ResponseProcessor struct {
	store     store.Store
	validator *ResponseValidator
	evaluator *RuleEvaluator
	jobs      store.JobRepo
}

// NewResponseProcessor creates a ResponseProcessor. jobs may be nil, in which
// case no background work is enqueued.
func NewResponseProcessor(st store.Store, jobs store.JobRepo) *ResponseProcessor {
	return &ResponseProcessor{
		store:     st,
		validator: NewResponseValidator(st),
		evaluator: NewRuleEvaluator(st),
		jobs:      jobs,
	}
}

// Validator exposes the processor's validator for batch operations.
func (p *ResponseProcessor) Validator() *ResponseValidator {
	return p.validator
}

// ProcessResponse validates, persists, and branches one submitted answer.
// Validation failures come back in the result, not as errors; an error return
// means the pipeline itself failed (unknown question/participation, store
// unavailable).
func (p *ResponseProcessor) ProcessResponse(ctx context.Context, participationID, questionID, answer, matrixRowID string) (*models.ResponseValidationResult, error) {
	response := models.SurveyResponse{
		ID:              util.GenerateResponseID(),
		ParticipationID: participationID,
		QuestionID:      questionID,
		MatrixRowID:     matrixRowID,
		Answer:          answer,
		RespondedAt:     time.Now(),
	}

	validation, err := p.validator.Validate(ctx, response)
	if err != nil {
		return nil, err
	}
	if !validation.IsValid {
		return &models.ResponseValidationResult{IsValid: false, Errors: validation.Errors}, nil
	}

	if !p.validator.SaveWithRetry(ctx, response) {
		return &models.ResponseValidationResult{
			IsValid: false,
			Errors:  []string{"Could not save your answer, please try again"},
		}, nil
	}

	action, err := p.evaluator.ProcessResponseBranching(ctx, response, participationID)
	if err != nil {
		return nil, err
	}

	result := &models.ResponseValidationResult{
		IsValid:    true,
		ResponseID: response.ID,
		NextAction: action,
	}
	if action != nil && action.Type == models.LogicDisqualify {
		result.IsScreeningResponse = true
		result.ScreeningResult = ScreeningResultDisqualified
	}

	p.enqueueSideEffects(response)
	return result, nil
}

// enqueueSideEffects fires the post-response background job. Failures are
// logged and swallowed: side effects must never fail the response path.
func (p *ResponseProcessor) enqueueSideEffects(response models.SurveyResponse) {
	if p.jobs == nil {
		return
	}
	payload, err := json.Marshal(postResponsePayload{
		ParticipationID: response.ParticipationID,
		QuestionID:      response.QuestionID,
		ResponseID:      response.ID,
	})
	if err != nil {
		slog.Error("ResponseProcessor.enqueueSideEffects marshal failed", "error", err, "responseID", response.ID)
		return
	}
	jobID, err := p.jobs.EnqueueJob(JobKindPostResponseEffects, time.Now(), string(payload), response.ID)
	if err != nil {
		slog.Error("ResponseProcessor.enqueueSideEffects enqueue failed", "error", err, "responseID", response.ID)
		return
	}
	slog.Debug("ResponseProcessor.enqueueSideEffects enqueued", "jobID", jobID, "responseID", response.ID)
}
