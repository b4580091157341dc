package models

import (
	"errors"
	"testing"
)

func TestQuestionRange(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		q       Question
		wantMin float64
		wantMax float64
		wantOK  bool
	}{
		{
			name:    "rating uses type default",
			q:       Question{Type: QuestionRating},
			wantMin: 1, wantMax: 5, wantOK: true,
		},
		{
			name:    "slider uses type default",
			q:       Question{Type: QuestionSlider},
			wantMin: 0, wantMax: 100, wantOK: true,
		},
		{
			name:   "number input without bounds has no range",
			q:      Question{Type: QuestionNumberInput},
			wantOK: false,
		},
		{
			name:    "explicit bounds override the default",
			q:       Question{Type: QuestionRating, MinValue: f(1), MaxValue: f(10)},
			wantMin: 1, wantMax: 10, wantOK: true,
		},
		{
			name:    "max-only bound on an unbounded type",
			q:       Question{Type: QuestionNumberInput, MaxValue: f(50)},
			wantMin: 0, wantMax: 50, wantOK: true,
		},
		{
			name:   "text questions have no range",
			q:      Question{Type: QuestionShortText},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			min, max, ok := tt.q.Range()
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if min != tt.wantMin || max != tt.wantMax {
				t.Errorf("Range() = [%g, %g], want [%g, %g]", min, max, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestIsValidQuestionType(t *testing.T) {
	for _, qt := range []QuestionType{
		QuestionShortText, QuestionLongText, QuestionSingleChoice,
		QuestionMultipleChoice, QuestionRating, QuestionSlider,
		QuestionNumberInput, QuestionMatrix, QuestionDate,
		QuestionEmail, QuestionPhone, QuestionYesNo,
	} {
		if !IsValidQuestionType(qt) {
			t.Errorf("IsValidQuestionType(%s) = false", qt)
		}
	}
	if IsValidQuestionType("hologram") {
		t.Error("IsValidQuestionType(hologram) = true")
	}
}

func TestSurveyResponseValidate(t *testing.T) {
	r := SurveyResponse{ParticipationID: "p1", QuestionID: "q1"}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	r = SurveyResponse{QuestionID: "q1"}
	if err := r.Validate(); !errors.Is(err, ErrResponseMissingParticipation) {
		t.Errorf("Validate() = %v, want ErrResponseMissingParticipation", err)
	}

	r = SurveyResponse{ParticipationID: "p1"}
	if err := r.Validate(); !errors.Is(err, ErrResponseMissingQuestion) {
		t.Errorf("Validate() = %v, want ErrResponseMissingQuestion", err)
	}
}

func TestValidationResultAddError(t *testing.T) {
	result := ValidationResult{IsValid: true}
	result.AddError("first")
	result.AddError("second")
	if result.IsValid {
		t.Error("result with errors should be invalid")
	}
	if len(result.Errors) != 2 {
		t.Errorf("Errors = %v, want 2 entries", result.Errors)
	}
}

func TestGraphAnalysisReportHasDefects(t *testing.T) {
	clean := GraphAnalysisReport{SurveyID: "s1", Converged: true}
	if clean.HasDefects() {
		t.Error("empty report should have no defects")
	}

	withCycle := GraphAnalysisReport{Cycles: []string{"cycle detected: a -> b -> a"}}
	if !withCycle.HasDefects() {
		t.Error("report with cycles should have defects")
	}
	withOrphan := GraphAnalysisReport{UnreachableQuestions: []string{"q9"}}
	if !withOrphan.HasDefects() {
		t.Error("report with unreachable questions should have defects")
	}
}
