// Package store provides storage backends for the survey flow engine.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/models"
	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/util"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// Compile-time checks.
var (
	_ Store   = (*PostgresStore)(nil)
	_ JobRepo = (*PostgresStore)(nil)
)

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// GetQuestionLogic returns a question's rules in insertion (seq) order.
func (s *PostgresStore) GetQuestionLogic(questionID string) ([]models.LogicRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM logic_rules WHERE source_question_id = $1 ORDER BY seq ASC`
	return s.queryRules(query, questionID)
}

// GetSurveyLogic returns every rule of a survey in insertion (seq) order.
func (s *PostgresStore) GetSurveyLogic(surveyID string) ([]models.LogicRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM logic_rules WHERE survey_id = $1 ORDER BY seq ASC`
	return s.queryRules(query, surveyID)
}

func (s *PostgresStore) queryRules(query string, arg string) ([]models.LogicRule, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		slog.Error("PostgresStore rule query failed", "error", err)
		return nil, fmt.Errorf("failed to query logic rules: %w", err)
	}
	defer rows.Close()

	var rules []models.LogicRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			slog.Error("PostgresStore rule scan failed", "error", err)
			return nil, err
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore rule rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate logic rule rows: %w", err)
	}
	return rules, nil
}

// AddLogicRule inserts a rule, assigning an ID when absent.
func (s *PostgresStore) AddLogicRule(rule models.LogicRule) error {
	if rule.ID == "" {
		rule.ID = util.GenerateRuleID()
	}
	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	_, err := s.db.Exec(
		`INSERT INTO logic_rules (`+ruleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rule.ID, rule.SurveyID, rule.SourceQuestionID, rule.ConditionType, rule.ConditionValue,
		nilIfEmpty(rule.ConditionValue2), nilIfEmpty(rule.CrossQuestionID), rule.LogicType,
		nilIfEmpty(rule.TargetQuestionID), nilIfEmpty(rule.TargetSectionID),
		encodeStringList(rule.TargetQuestionIDs), nilIfEmpty(rule.Message), rule.IsActive,
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore AddLogicRule failed", "error", err, "ruleID", rule.ID)
		return fmt.Errorf("failed to insert logic rule %s: %w", rule.ID, err)
	}
	slog.Debug("PostgresStore AddLogicRule succeeded", "ruleID", rule.ID, "source", rule.SourceQuestionID)
	return nil
}

// GetParticipation retrieves a participation, or (nil, nil) when unknown.
func (s *PostgresStore) GetParticipation(participationID string) (*models.Participation, error) {
	row := s.db.QueryRow(
		`SELECT id, survey_id, respondent_id, status, current_section_id, current_question_id, started_at, completed_at
		 FROM participations WHERE id = $1`, participationID)
	p, err := scanParticipationRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetParticipation not found", "participationID", participationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetParticipation failed", "error", err, "participationID", participationID)
		return nil, err
	}
	return &p, nil
}

// SaveParticipation inserts or updates a participation.
func (s *PostgresStore) SaveParticipation(p models.Participation) error {
	if p.ID == "" {
		p.ID = util.GenerateParticipationID()
	}
	_, err := s.db.Exec(
		`INSERT INTO participations (id, survey_id, respondent_id, status, current_section_id, current_question_id, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status,
		   current_section_id = EXCLUDED.current_section_id,
		   current_question_id = EXCLUDED.current_question_id,
		   completed_at = EXCLUDED.completed_at`,
		p.ID, p.SurveyID, p.RespondentID, p.Status,
		nilIfEmpty(p.CurrentSectionID), nilIfEmpty(p.CurrentQuestionID), p.StartedAt, p.CompletedAt,
	)
	if err != nil {
		slog.Error("PostgresStore SaveParticipation failed", "error", err, "participationID", p.ID)
		return fmt.Errorf("failed to save participation %s: %w", p.ID, err)
	}
	return nil
}

// UpdateParticipationSection moves a participation's current section pointer.
func (s *PostgresStore) UpdateParticipationSection(participationID, sectionID string) error {
	_, err := s.db.Exec(
		`UPDATE participations SET current_section_id = $1, current_question_id = NULL WHERE id = $2`,
		sectionID, participationID,
	)
	if err != nil {
		slog.Error("PostgresStore UpdateParticipationSection failed", "error", err, "participationID", participationID)
		return fmt.Errorf("failed to update participation section: %w", err)
	}
	slog.Debug("PostgresStore UpdateParticipationSection succeeded", "participationID", participationID, "sectionID", sectionID)
	return nil
}

// CompleteSurvey marks a participation as completed.
func (s *PostgresStore) CompleteSurvey(participationID string) error {
	_, err := s.db.Exec(
		`UPDATE participations SET status = $1, completed_at = $2 WHERE id = $3`,
		models.ParticipationStatusCompleted, time.Now(), participationID,
	)
	if err != nil {
		slog.Error("PostgresStore CompleteSurvey failed", "error", err, "participationID", participationID)
		return fmt.Errorf("failed to complete participation %s: %w", participationID, err)
	}
	slog.Debug("PostgresStore CompleteSurvey succeeded", "participationID", participationID)
	return nil
}

// GetSavedResponses returns a participation's responses ordered by timestamp.
func (s *PostgresStore) GetSavedResponses(participationID string) ([]models.SurveyResponse, error) {
	rows, err := s.db.Query(
		`SELECT id, participation_id, question_id, matrix_row_id, answer, responded_at
		 FROM survey_responses WHERE participation_id = $1 ORDER BY responded_at ASC, id ASC`,
		participationID,
	)
	if err != nil {
		slog.Error("PostgresStore GetSavedResponses query failed", "error", err, "participationID", participationID)
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	var responses []models.SurveyResponse
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			slog.Error("PostgresStore GetSavedResponses scan failed", "error", err)
			return nil, err
		}
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetSavedResponses rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate response rows: %w", err)
	}
	return responses, nil
}

// SaveSurveyResponse inserts a response, assigning ID and timestamp when absent.
func (s *PostgresStore) SaveSurveyResponse(r models.SurveyResponse) error {
	if r.ID == "" {
		r.ID = util.GenerateResponseID()
	}
	if r.RespondedAt.IsZero() {
		r.RespondedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO survey_responses (id, participation_id, question_id, matrix_row_id, answer, responded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.ParticipationID, r.QuestionID, nilIfEmpty(r.MatrixRowID), r.Answer, r.RespondedAt,
	)
	if err != nil {
		slog.Error("PostgresStore SaveSurveyResponse failed", "error", err, "responseID", r.ID)
		return fmt.Errorf("failed to insert response %s: %w", r.ID, err)
	}
	slog.Debug("PostgresStore SaveSurveyResponse succeeded", "responseID", r.ID, "questionID", r.QuestionID)
	return nil
}

// GetQuestion retrieves a question, or (nil, nil) when unknown.
func (s *PostgresStore) GetQuestion(questionID string) (*models.Question, error) {
	row := s.db.QueryRow(
		`SELECT id, survey_id, section_id, type, text, is_mandatory, min_length, max_length,
		        min_value, max_value, validation_regex, validation_message, question_order
		 FROM questions WHERE id = $1`, questionID)
	q, err := scanQuestionRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetQuestion not found", "questionID", questionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetQuestion failed", "error", err, "questionID", questionID)
		return nil, err
	}
	return &q, nil
}

// SaveQuestion inserts or updates a question.
func (s *PostgresStore) SaveQuestion(q models.Question) error {
	_, err := s.db.Exec(
		`INSERT INTO questions (id, survey_id, section_id, type, text, is_mandatory, min_length, max_length,
		        min_value, max_value, validation_regex, validation_message, question_order)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO UPDATE SET
		   type = EXCLUDED.type,
		   text = EXCLUDED.text,
		   is_mandatory = EXCLUDED.is_mandatory,
		   min_length = EXCLUDED.min_length,
		   max_length = EXCLUDED.max_length,
		   min_value = EXCLUDED.min_value,
		   max_value = EXCLUDED.max_value,
		   validation_regex = EXCLUDED.validation_regex,
		   validation_message = EXCLUDED.validation_message,
		   question_order = EXCLUDED.question_order`,
		q.ID, q.SurveyID, q.SectionID, q.Type, q.Text, q.IsMandatory, q.MinLength, q.MaxLength,
		q.MinValue, q.MaxValue, nilIfEmpty(q.ValidationRegex), nilIfEmpty(q.ValidationMessage), q.Order,
	)
	if err != nil {
		slog.Error("PostgresStore SaveQuestion failed", "error", err, "questionID", q.ID)
		return fmt.Errorf("failed to save question %s: %w", q.ID, err)
	}
	return nil
}

// GetSurveyQuestionIDs returns the ids of every question of a survey.
func (s *PostgresStore) GetSurveyQuestionIDs(surveyID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM questions WHERE survey_id = $1 ORDER BY question_order ASC, id ASC`, surveyID)
	if err != nil {
		slog.Error("PostgresStore GetSurveyQuestionIDs query failed", "error", err, "surveyID", surveyID)
		return nil, fmt.Errorf("failed to query survey questions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			slog.Error("PostgresStore GetSurveyQuestionIDs scan failed", "error", err)
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetChoices returns a question's choices in display order.
func (s *PostgresStore) GetChoices(questionID string) ([]models.Choice, error) {
	rows, err := s.db.Query(
		`SELECT id, question_id, value, label, is_exclusive, choice_order
		 FROM choices WHERE question_id = $1 ORDER BY choice_order ASC, id ASC`, questionID)
	if err != nil {
		slog.Error("PostgresStore GetChoices query failed", "error", err, "questionID", questionID)
		return nil, fmt.Errorf("failed to query choices: %w", err)
	}
	defer rows.Close()

	var choices []models.Choice
	for rows.Next() {
		var c models.Choice
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.Value, &c.Label, &c.IsExclusive, &c.Order); err != nil {
			slog.Error("PostgresStore GetChoices scan failed", "error", err)
			return nil, err
		}
		choices = append(choices, c)
	}
	return choices, rows.Err()
}

// AddChoice inserts a choice.
func (s *PostgresStore) AddChoice(c models.Choice) error {
	_, err := s.db.Exec(
		`INSERT INTO choices (id, question_id, value, label, is_exclusive, choice_order) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.QuestionID, c.Value, c.Label, c.IsExclusive, c.Order,
	)
	if err != nil {
		slog.Error("PostgresStore AddChoice failed", "error", err, "choiceID", c.ID)
		return fmt.Errorf("failed to insert choice %s: %w", c.ID, err)
	}
	return nil
}

// GetMatrixRows returns a matrix question's rows in display order.
func (s *PostgresStore) GetMatrixRows(questionID string) ([]models.MatrixRow, error) {
	rows, err := s.db.Query(
		`SELECT id, question_id, label, row_order FROM matrix_rows WHERE question_id = $1 ORDER BY row_order ASC, id ASC`,
		questionID)
	if err != nil {
		slog.Error("PostgresStore GetMatrixRows query failed", "error", err, "questionID", questionID)
		return nil, fmt.Errorf("failed to query matrix rows: %w", err)
	}
	defer rows.Close()

	var result []models.MatrixRow
	for rows.Next() {
		var r models.MatrixRow
		if err := rows.Scan(&r.ID, &r.QuestionID, &r.Label, &r.Order); err != nil {
			slog.Error("PostgresStore GetMatrixRows scan failed", "error", err)
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// GetMatrixColumns returns a matrix question's columns in display order.
func (s *PostgresStore) GetMatrixColumns(questionID string) ([]models.MatrixColumn, error) {
	rows, err := s.db.Query(
		`SELECT id, question_id, value, label, column_order FROM matrix_columns WHERE question_id = $1 ORDER BY column_order ASC, id ASC`,
		questionID)
	if err != nil {
		slog.Error("PostgresStore GetMatrixColumns query failed", "error", err, "questionID", questionID)
		return nil, fmt.Errorf("failed to query matrix columns: %w", err)
	}
	defer rows.Close()

	var result []models.MatrixColumn
	for rows.Next() {
		var c models.MatrixColumn
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.Value, &c.Label, &c.Order); err != nil {
			slog.Error("PostgresStore GetMatrixColumns scan failed", "error", err)
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// AddMatrixRow inserts a matrix row.
func (s *PostgresStore) AddMatrixRow(r models.MatrixRow) error {
	_, err := s.db.Exec(
		`INSERT INTO matrix_rows (id, question_id, label, row_order) VALUES ($1, $2, $3, $4)`,
		r.ID, r.QuestionID, r.Label, r.Order,
	)
	if err != nil {
		slog.Error("PostgresStore AddMatrixRow failed", "error", err, "rowID", r.ID)
		return fmt.Errorf("failed to insert matrix row %s: %w", r.ID, err)
	}
	return nil
}

// AddMatrixColumn inserts a matrix column.
func (s *PostgresStore) AddMatrixColumn(c models.MatrixColumn) error {
	_, err := s.db.Exec(
		`INSERT INTO matrix_columns (id, question_id, value, label, column_order) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.QuestionID, c.Value, c.Label, c.Order,
	)
	if err != nil {
		slog.Error("PostgresStore AddMatrixColumn failed", "error", err, "columnID", c.ID)
		return fmt.Errorf("failed to insert matrix column %s: %w", c.ID, err)
	}
	return nil
}

// EnqueueJob inserts a background job. Dedupe-key hits return the existing
// job's ID without inserting a duplicate.
func (s *PostgresStore) EnqueueJob(kind string, runAt time.Time, payloadJSON string, dedupeKey string) (string, error) {
	id := util.GenerateJobID()
	now := time.Now()

	if dedupeKey != "" {
		var existingID string
		err := s.db.QueryRow(
			`SELECT id FROM jobs WHERE dedupe_key = $1 AND status = 'queued'`,
			dedupeKey,
		).Scan(&existingID)
		if err == nil {
			slog.Debug("PostgresStore EnqueueJob dedupe hit", "dedupeKey", dedupeKey, "existingID", existingID)
			return existingID, nil
		}
		if err != sql.ErrNoRows {
			return "", fmt.Errorf("dedupe check failed: %w", err)
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO jobs (id, kind, run_at, payload_json, status, dedupe_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 'queued', $5, $6, $7)`,
		id, kind, runAt, payloadJSON, nilIfEmpty(dedupeKey), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("enqueue job failed: %w", err)
	}
	slog.Debug("PostgresStore EnqueueJob succeeded", "id", id, "kind", kind)
	return id, nil
}

// GetJob retrieves a job by ID, or (nil, nil) when unknown.
func (s *PostgresStore) GetJob(id string) (*Job, error) {
	var j Job
	var payloadJSON, dedupeKey sql.NullString
	err := s.db.QueryRow(
		`SELECT id, kind, run_at, payload_json, status, dedupe_key, created_at, updated_at FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.Kind, &j.RunAt, &payloadJSON, &j.Status, &dedupeKey, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job failed: %w", err)
	}
	j.PayloadJSON = payloadJSON.String
	j.DedupeKey = dedupeKey.String
	return &j, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
