// Package store provides storage backends for the survey flow engine.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/models"
	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/util"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// ruleColumns is the shared column list for logic rule queries; scanRule
// depends on this order.
const ruleColumns = `id, survey_id, source_question_id, condition_type, condition_value,
	condition_value2, cross_question_id, logic_type, target_question_id,
	target_section_id, target_question_ids, message, is_active, created_at, updated_at`

// Compile-time checks.
var (
	_ Store   = (*SQLiteStore)(nil)
	_ JobRepo = (*SQLiteStore)(nil)
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// GetQuestionLogic returns a question's rules in insertion (rowid) order.
func (s *SQLiteStore) GetQuestionLogic(questionID string) ([]models.LogicRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM logic_rules WHERE source_question_id = ? ORDER BY rowid ASC`
	return s.queryRules(query, questionID)
}

// GetSurveyLogic returns every rule of a survey in insertion (rowid) order.
func (s *SQLiteStore) GetSurveyLogic(surveyID string) ([]models.LogicRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM logic_rules WHERE survey_id = ? ORDER BY rowid ASC`
	return s.queryRules(query, surveyID)
}

func (s *SQLiteStore) queryRules(query string, arg string) ([]models.LogicRule, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		slog.Error("SQLiteStore rule query failed", "error", err)
		return nil, fmt.Errorf("failed to query logic rules: %w", err)
	}
	defer rows.Close()

	var rules []models.LogicRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			slog.Error("SQLiteStore rule scan failed", "error", err)
			return nil, err
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore rule rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate logic rule rows: %w", err)
	}
	return rules, nil
}

// AddLogicRule inserts a rule, assigning an ID when absent.
func (s *SQLiteStore) AddLogicRule(rule models.LogicRule) error {
	if rule.ID == "" {
		rule.ID = util.GenerateRuleID()
	}
	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	_, err := s.db.Exec(
		`INSERT INTO logic_rules (`+ruleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.SurveyID, rule.SourceQuestionID, rule.ConditionType, rule.ConditionValue,
		nilIfEmpty(rule.ConditionValue2), nilIfEmpty(rule.CrossQuestionID), rule.LogicType,
		nilIfEmpty(rule.TargetQuestionID), nilIfEmpty(rule.TargetSectionID),
		encodeStringList(rule.TargetQuestionIDs), nilIfEmpty(rule.Message), rule.IsActive,
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore AddLogicRule failed", "error", err, "ruleID", rule.ID)
		return fmt.Errorf("failed to insert logic rule %s: %w", rule.ID, err)
	}
	slog.Debug("SQLiteStore AddLogicRule succeeded", "ruleID", rule.ID, "source", rule.SourceQuestionID)
	return nil
}

// GetParticipation retrieves a participation, or (nil, nil) when unknown.
func (s *SQLiteStore) GetParticipation(participationID string) (*models.Participation, error) {
	row := s.db.QueryRow(
		`SELECT id, survey_id, respondent_id, status, current_section_id, current_question_id, started_at, completed_at
		 FROM participations WHERE id = ?`, participationID)
	p, err := scanParticipationRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetParticipation not found", "participationID", participationID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetParticipation failed", "error", err, "participationID", participationID)
		return nil, err
	}
	return &p, nil
}

// SaveParticipation inserts or replaces a participation.
func (s *SQLiteStore) SaveParticipation(p models.Participation) error {
	if p.ID == "" {
		p.ID = util.GenerateParticipationID()
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO participations (id, survey_id, respondent_id, status, current_section_id, current_question_id, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SurveyID, p.RespondentID, p.Status,
		nilIfEmpty(p.CurrentSectionID), nilIfEmpty(p.CurrentQuestionID), p.StartedAt, p.CompletedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveParticipation failed", "error", err, "participationID", p.ID)
		return fmt.Errorf("failed to save participation %s: %w", p.ID, err)
	}
	return nil
}

// UpdateParticipationSection moves a participation's current section pointer.
func (s *SQLiteStore) UpdateParticipationSection(participationID, sectionID string) error {
	_, err := s.db.Exec(
		`UPDATE participations SET current_section_id = ?, current_question_id = NULL WHERE id = ?`,
		sectionID, participationID,
	)
	if err != nil {
		slog.Error("SQLiteStore UpdateParticipationSection failed", "error", err, "participationID", participationID)
		return fmt.Errorf("failed to update participation section: %w", err)
	}
	slog.Debug("SQLiteStore UpdateParticipationSection succeeded", "participationID", participationID, "sectionID", sectionID)
	return nil
}

// CompleteSurvey marks a participation as completed.
func (s *SQLiteStore) CompleteSurvey(participationID string) error {
	_, err := s.db.Exec(
		`UPDATE participations SET status = ?, completed_at = ? WHERE id = ?`,
		models.ParticipationStatusCompleted, time.Now(), participationID,
	)
	if err != nil {
		slog.Error("SQLiteStore CompleteSurvey failed", "error", err, "participationID", participationID)
		return fmt.Errorf("failed to complete participation %s: %w", participationID, err)
	}
	slog.Debug("SQLiteStore CompleteSurvey succeeded", "participationID", participationID)
	return nil
}

// GetSavedResponses returns a participation's responses ordered by timestamp.
func (s *SQLiteStore) GetSavedResponses(participationID string) ([]models.SurveyResponse, error) {
	rows, err := s.db.Query(
		`SELECT id, participation_id, question_id, matrix_row_id, answer, responded_at
		 FROM survey_responses WHERE participation_id = ? ORDER BY responded_at ASC, rowid ASC`,
		participationID,
	)
	if err != nil {
		slog.Error("SQLiteStore GetSavedResponses query failed", "error", err, "participationID", participationID)
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	var responses []models.SurveyResponse
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			slog.Error("SQLiteStore GetSavedResponses scan failed", "error", err)
			return nil, err
		}
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetSavedResponses rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate response rows: %w", err)
	}
	return responses, nil
}

// SaveSurveyResponse inserts a response, assigning ID and timestamp when absent.
func (s *SQLiteStore) SaveSurveyResponse(r models.SurveyResponse) error {
	if r.ID == "" {
		r.ID = util.GenerateResponseID()
	}
	if r.RespondedAt.IsZero() {
		r.RespondedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO survey_responses (id, participation_id, question_id, matrix_row_id, answer, responded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.ParticipationID, r.QuestionID, nilIfEmpty(r.MatrixRowID), r.Answer, r.RespondedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveSurveyResponse failed", "error", err, "responseID", r.ID)
		return fmt.Errorf("failed to insert response %s: %w", r.ID, err)
	}
	slog.Debug("SQLiteStore SaveSurveyResponse succeeded", "responseID", r.ID, "questionID", r.QuestionID)
	return nil
}

// GetQuestion retrieves a question, or (nil, nil) when unknown.
func (s *SQLiteStore) GetQuestion(questionID string) (*models.Question, error) {
	row := s.db.QueryRow(
		`SELECT id, survey_id, section_id, type, text, is_mandatory, min_length, max_length,
		        min_value, max_value, validation_regex, validation_message, question_order
		 FROM questions WHERE id = ?`, questionID)
	q, err := scanQuestionRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetQuestion not found", "questionID", questionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetQuestion failed", "error", err, "questionID", questionID)
		return nil, err
	}
	return &q, nil
}

// SaveQuestion inserts or replaces a question.
func (s *SQLiteStore) SaveQuestion(q models.Question) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO questions (id, survey_id, section_id, type, text, is_mandatory, min_length, max_length,
		        min_value, max_value, validation_regex, validation_message, question_order)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.SurveyID, q.SectionID, q.Type, q.Text, q.IsMandatory, q.MinLength, q.MaxLength,
		q.MinValue, q.MaxValue, nilIfEmpty(q.ValidationRegex), nilIfEmpty(q.ValidationMessage), q.Order,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveQuestion failed", "error", err, "questionID", q.ID)
		return fmt.Errorf("failed to save question %s: %w", q.ID, err)
	}
	return nil
}

// GetSurveyQuestionIDs returns the ids of every question of a survey.
func (s *SQLiteStore) GetSurveyQuestionIDs(surveyID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM questions WHERE survey_id = ? ORDER BY question_order ASC, rowid ASC`, surveyID)
	if err != nil {
		slog.Error("SQLiteStore GetSurveyQuestionIDs query failed", "error", err, "surveyID", surveyID)
		return nil, fmt.Errorf("failed to query survey questions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			slog.Error("SQLiteStore GetSurveyQuestionIDs scan failed", "error", err)
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetChoices returns a question's choices in display order.
func (s *SQLiteStore) GetChoices(questionID string) ([]models.Choice, error) {
	rows, err := s.db.Query(
		`SELECT id, question_id, value, label, is_exclusive, choice_order
		 FROM choices WHERE question_id = ? ORDER BY choice_order ASC, rowid ASC`, questionID)
	if err != nil {
		slog.Error("SQLiteStore GetChoices query failed", "error", err, "questionID", questionID)
		return nil, fmt.Errorf("failed to query choices: %w", err)
	}
	defer rows.Close()

	var choices []models.Choice
	for rows.Next() {
		var c models.Choice
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.Value, &c.Label, &c.IsExclusive, &c.Order); err != nil {
			slog.Error("SQLiteStore GetChoices scan failed", "error", err)
			return nil, err
		}
		choices = append(choices, c)
	}
	return choices, rows.Err()
}

// AddChoice inserts a choice.
func (s *SQLiteStore) AddChoice(c models.Choice) error {
	_, err := s.db.Exec(
		`INSERT INTO choices (id, question_id, value, label, is_exclusive, choice_order) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.QuestionID, c.Value, c.Label, c.IsExclusive, c.Order,
	)
	if err != nil {
		slog.Error("SQLiteStore AddChoice failed", "error", err, "choiceID", c.ID)
		return fmt.Errorf("failed to insert choice %s: %w", c.ID, err)
	}
	return nil
}

// GetMatrixRows returns a matrix question's rows in display order.
func (s *SQLiteStore) GetMatrixRows(questionID string) ([]models.MatrixRow, error) {
	rows, err := s.db.Query(
		`SELECT id, question_id, label, row_order FROM matrix_rows WHERE question_id = ? ORDER BY row_order ASC, rowid ASC`,
		questionID)
	if err != nil {
		slog.Error("SQLiteStore GetMatrixRows query failed", "error", err, "questionID", questionID)
		return nil, fmt.Errorf("failed to query matrix rows: %w", err)
	}
	defer rows.Close()

	var result []models.MatrixRow
	for rows.Next() {
		var r models.MatrixRow
		if err := rows.Scan(&r.ID, &r.QuestionID, &r.Label, &r.Order); err != nil {
			slog.Error("SQLiteStore GetMatrixRows scan failed", "error", err)
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// GetMatrixColumns returns a matrix question's columns in display order.
func (s *SQLiteStore) GetMatrixColumns(questionID string) ([]models.MatrixColumn, error) {
	rows, err := s.db.Query(
		`SELECT id, question_id, value, label, column_order FROM matrix_columns WHERE question_id = ? ORDER BY column_order ASC, rowid ASC`,
		questionID)
	if err != nil {
		slog.Error("SQLiteStore GetMatrixColumns query failed", "error", err, "questionID", questionID)
		return nil, fmt.Errorf("failed to query matrix columns: %w", err)
	}
	defer rows.Close()

	var result []models.MatrixColumn
	for rows.Next() {
		var c models.MatrixColumn
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.Value, &c.Label, &c.Order); err != nil {
			slog.Error("SQLiteStore GetMatrixColumns scan failed", "error", err)
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// AddMatrixRow inserts a matrix row.
func (s *SQLiteStore) AddMatrixRow(r models.MatrixRow) error {
	_, err := s.db.Exec(
		`INSERT INTO matrix_rows (id, question_id, label, row_order) VALUES (?, ?, ?, ?)`,
		r.ID, r.QuestionID, r.Label, r.Order,
	)
	if err != nil {
		slog.Error("SQLiteStore AddMatrixRow failed", "error", err, "rowID", r.ID)
		return fmt.Errorf("failed to insert matrix row %s: %w", r.ID, err)
	}
	return nil
}

// AddMatrixColumn inserts a matrix column.
func (s *SQLiteStore) AddMatrixColumn(c models.MatrixColumn) error {
	_, err := s.db.Exec(
		`INSERT INTO matrix_columns (id, question_id, value, label, column_order) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.QuestionID, c.Value, c.Label, c.Order,
	)
	if err != nil {
		slog.Error("SQLiteStore AddMatrixColumn failed", "error", err, "columnID", c.ID)
		return fmt.Errorf("failed to insert matrix column %s: %w", c.ID, err)
	}
	return nil
}

// EnqueueJob inserts a background job. Dedupe-key hits return the existing
// job's ID without inserting a duplicate.
func (s *SQLiteStore) EnqueueJob(kind string, runAt time.Time, payloadJSON string, dedupeKey string) (string, error) {
	id := util.GenerateJobID()
	now := time.Now()

	if dedupeKey != "" {
		var existingID string
		err := s.db.QueryRow(
			`SELECT id FROM jobs WHERE dedupe_key = ? AND status = 'queued'`,
			dedupeKey,
		).Scan(&existingID)
		if err == nil {
			slog.Debug("SQLiteStore EnqueueJob dedupe hit", "dedupeKey", dedupeKey, "existingID", existingID)
			return existingID, nil
		}
		if err != sql.ErrNoRows {
			return "", fmt.Errorf("dedupe check failed: %w", err)
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO jobs (id, kind, run_at, payload_json, status, dedupe_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'queued', ?, ?, ?)`,
		id, kind, runAt, payloadJSON, nilIfEmpty(dedupeKey), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("enqueue job failed: %w", err)
	}
	slog.Debug("SQLiteStore EnqueueJob succeeded", "id", id, "kind", kind)
	return id, nil
}

// GetJob retrieves a job by ID, or (nil, nil) when unknown.
func (s *SQLiteStore) GetJob(id string) (*Job, error) {
	var j Job
	var payloadJSON, dedupeKey sql.NullString
	err := s.db.QueryRow(
		`SELECT id, kind, run_at, payload_json, status, dedupe_key, created_at, updated_at FROM jobs WHERE id = ?`, id,
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

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
