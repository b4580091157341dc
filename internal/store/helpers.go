package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// encodeStringList serializes a string slice as JSON for a nullable text
// column; empty slices become NULL.
func encodeStringList(list []string) interface{} {
	if len(list) == 0 {
		return nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil
	}
	return string(data)
}

// decodeStringList deserializes a JSON-encoded string list column.
func decodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	return list
}

// scanRule scans a LogicRule from sql.Rows. Column order must match the
// ruleColumns list used by both SQL backends.
func scanRule(rows *sql.Rows) (models.LogicRule, error) {
	var r models.LogicRule
	var conditionValue2, crossQuestionID, targetQuestionID, targetSectionID, targetQuestionIDs, message sql.NullString
	err := rows.Scan(
		&r.ID, &r.SurveyID, &r.SourceQuestionID, &r.ConditionType, &r.ConditionValue,
		&conditionValue2, &crossQuestionID, &r.LogicType, &targetQuestionID,
		&targetSectionID, &targetQuestionIDs, &message, &r.IsActive,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return r, fmt.Errorf("scan logic rule failed: %w", err)
	}
	r.ConditionValue2 = conditionValue2.String
	r.CrossQuestionID = crossQuestionID.String
	r.TargetQuestionID = targetQuestionID.String
	r.TargetSectionID = targetSectionID.String
	r.TargetQuestionIDs = decodeStringList(targetQuestionIDs.String)
	r.Message = message.String
	return r, nil
}

// scanQuestionRow scans a Question from a single sql.Row.
func scanQuestionRow(row *sql.Row) (models.Question, error) {
	var q models.Question
	var minValue, maxValue sql.NullFloat64
	var validationRegex, validationMessage sql.NullString
	err := row.Scan(
		&q.ID, &q.SurveyID, &q.SectionID, &q.Type, &q.Text, &q.IsMandatory,
		&q.MinLength, &q.MaxLength, &minValue, &maxValue,
		&validationRegex, &validationMessage, &q.Order,
	)
	if err != nil {
		return q, err
	}
	if minValue.Valid {
		v := minValue.Float64
		q.MinValue = &v
	}
	if maxValue.Valid {
		v := maxValue.Float64
		q.MaxValue = &v
	}
	q.ValidationRegex = validationRegex.String
	q.ValidationMessage = validationMessage.String
	return q, nil
}

// scanResponse scans a SurveyResponse from sql.Rows.
func scanResponse(rows *sql.Rows) (models.SurveyResponse, error) {
	var r models.SurveyResponse
	var matrixRowID sql.NullString
	err := rows.Scan(&r.ID, &r.ParticipationID, &r.QuestionID, &matrixRowID, &r.Answer, &r.RespondedAt)
	if err != nil {
		return r, fmt.Errorf("scan survey response failed: %w", err)
	}
	r.MatrixRowID = matrixRowID.String
	return r, nil
}

// scanParticipationRow scans a Participation from a single sql.Row.
func scanParticipationRow(row *sql.Row) (models.Participation, error) {
	var p models.Participation
	var currentSectionID, currentQuestionID sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&p.ID, &p.SurveyID, &p.RespondentID, &p.Status,
		&currentSectionID, &currentQuestionID, &p.StartedAt, &completedAt,
	)
	if err != nil {
		return p, err
	}
	p.CurrentSectionID = currentSectionID.String
	p.CurrentQuestionID = currentQuestionID.String
	if completedAt.Valid {
		p.CompletedAt = &completedAt.Time
	}
	return p, nil
}
