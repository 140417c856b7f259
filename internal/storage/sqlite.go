// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/compilatio/internal/models"
)

const submissionColumns = `id, cm, userid, identifier, filename, timesubmitted, statuscode,
	externalid, reporturl, similarityscore, attempt, errorresponse`

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS plagiarism_compilatio_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cm INTEGER NOT NULL,
		userid INTEGER NOT NULL,
		identifier TEXT NOT NULL DEFAULT '',
		filename TEXT NOT NULL DEFAULT '',
		timesubmitted INTEGER NOT NULL DEFAULT 0,
		statuscode TEXT NOT NULL DEFAULT '',
		externalid TEXT NOT NULL DEFAULT '',
		reporturl TEXT NOT NULL DEFAULT '',
		similarityscore REAL NOT NULL DEFAULT 0,
		attempt INTEGER NOT NULL DEFAULT 0,
		errorresponse TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_compilatio_files_cm_user ON plagiarism_compilatio_files(cm, userid);
	CREATE INDEX IF NOT EXISTS idx_compilatio_files_userid ON plagiarism_compilatio_files(userid);
	CREATE INDEX IF NOT EXISTS idx_compilatio_files_externalid ON plagiarism_compilatio_files(externalid);
	CREATE INDEX IF NOT EXISTS idx_compilatio_files_statuscode ON plagiarism_compilatio_files(statuscode);
	`
	_, err := db.Exec(schema)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*models.Submission, error) {
	var sub models.Submission
	var submitted int64
	err := row.Scan(&sub.ID, &sub.CM, &sub.UserID, &sub.Identifier, &sub.Filename, &submitted,
		&sub.StatusCode, &sub.ExternalID, &sub.ReportURL, &sub.SimilarityScore, &sub.Attempt,
		&sub.ErrorResponse)
	if err != nil {
		return nil, err
	}
	sub.TimeSubmitted = time.Unix(submitted, 0)
	return &sub, nil
}

// CreateSubmission inserts a submission and sets its ID. TimeSubmitted defaults to now.
func (s *SQLiteStorage) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	if sub.TimeSubmitted.IsZero() {
		sub.TimeSubmitted = time.Now()
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO plagiarism_compilatio_files (cm, userid, identifier, filename, timesubmitted,
			statuscode, externalid, reporturl, similarityscore, attempt, errorresponse)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.CM, sub.UserID, sub.Identifier, sub.Filename, sub.TimeSubmitted.Unix(),
		sub.StatusCode, sub.ExternalID, sub.ReportURL, sub.SimilarityScore, sub.Attempt,
		sub.ErrorResponse,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	sub.ID = id
	return nil
}

// GetSubmission returns a submission by ID.
func (s *SQLiteStorage) GetSubmission(ctx context.Context, id int64) (*models.Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM plagiarism_compilatio_files WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return sub, err
}

// GetSubmissionByExternalID returns the most recent submission with the given Compilatio id.
func (s *SQLiteStorage) GetSubmissionByExternalID(ctx context.Context, externalID string) (*models.Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM plagiarism_compilatio_files
		 WHERE externalid = ? ORDER BY id DESC LIMIT 1`, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, externalID)
	}
	return sub, err
}

// UpdateSubmission updates the mutable fields of an existing submission.
func (s *SQLiteStorage) UpdateSubmission(ctx context.Context, sub *models.Submission) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE plagiarism_compilatio_files SET statuscode = ?, externalid = ?, reporturl = ?,
			similarityscore = ?, attempt = ?, errorresponse = ?
		 WHERE id = ?`,
		sub.StatusCode, sub.ExternalID, sub.ReportURL, sub.SimilarityScore, sub.Attempt,
		sub.ErrorResponse, sub.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, sub.ID)
	}
	return nil
}

// ListSubmissions returns submissions matching filter, newest first.
func (s *SQLiteStorage) ListSubmissions(ctx context.Context, filter Filter, offset, limit int) ([]*models.Submission, error) {
	where, args := filter.clause()
	args = append(args, limit, offset)
	return s.query(ctx,
		`SELECT `+submissionColumns+` FROM plagiarism_compilatio_files`+where+
			` ORDER BY id DESC LIMIT ? OFFSET ?`, args...)
}

// ListPending returns uploaded submissions whose analysis has not reached a final state.
func (s *SQLiteStorage) ListPending(ctx context.Context) ([]*models.Submission, error) {
	return s.query(ctx,
		`SELECT `+submissionColumns+` FROM plagiarism_compilatio_files
		 WHERE externalid != '' AND statuscode NOT IN ('ANALYSE_COMPLETE', 'ANALYSE_CRASHED')
		 ORDER BY id`)
}

// CountAttempts returns how many times the same content was submitted by a user in a module.
func (s *SQLiteStorage) CountAttempts(ctx context.Context, cm, userID int64, identifier string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM plagiarism_compilatio_files WHERE cm = ? AND userid = ? AND identifier = ?`,
		cm, userID, identifier,
	).Scan(&n)
	return n, err
}

// ModulesForUser returns the distinct course modules holding submissions of userID.
func (s *SQLiteStorage) ModulesForUser(ctx context.Context, userID int64) ([]int64, error) {
	return s.ids(ctx,
		`SELECT DISTINCT cm FROM plagiarism_compilatio_files WHERE userid = ? ORDER BY cm`, userID)
}

// UsersInModule returns the distinct users with submissions in cm.
func (s *SQLiteStorage) UsersInModule(ctx context.Context, cm int64) ([]int64, error) {
	return s.ids(ctx,
		`SELECT DISTINCT userid FROM plagiarism_compilatio_files WHERE cm = ? ORDER BY userid`, cm)
}

// ExternalIDs returns the Compilatio ids recorded in cm, restricted to userIDs when non-empty.
func (s *SQLiteStorage) ExternalIDs(ctx context.Context, cm int64, userIDs []int64) ([]string, error) {
	where, args := userScope(cm, userIDs)
	rows, err := s.db.QueryContext(ctx,
		`SELECT externalid FROM plagiarism_compilatio_files`+where+` AND externalid != '' ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteSubmissions removes the submissions of cm, restricted to userIDs when non-empty.
func (s *SQLiteStorage) DeleteSubmissions(ctx context.Context, cm int64, userIDs []int64) (int64, error) {
	where, args := userScope(cm, userIDs)
	result, err := s.db.ExecContext(ctx, `DELETE FROM plagiarism_compilatio_files`+where, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountSubmissions returns the total number of submissions.
func (s *SQLiteStorage) CountSubmissions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plagiarism_compilatio_files`).Scan(&count)
	return count, err
}

// CountByStatus returns the number of submissions per status code.
func (s *SQLiteStorage) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT statuscode, COUNT(*) FROM plagiarism_compilatio_files GROUP BY statuscode`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) query(ctx context.Context, q string, args ...any) ([]*models.Submission, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *SQLiteStorage) ids(ctx context.Context, q string, arg int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (f Filter) clause() (string, []any) {
	var conds []string
	var args []any
	if f.CM > 0 {
		conds = append(conds, "cm = ?")
		args = append(args, f.CM)
	}
	if f.UserID > 0 {
		conds = append(conds, "userid = ?")
		args = append(args, f.UserID)
	}
	if f.StatusCode != "" {
		conds = append(conds, "statuscode = ?")
		args = append(args, f.StatusCode)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func userScope(cm int64, userIDs []int64) (string, []any) {
	where := " WHERE cm = ?"
	args := []any{cm}
	if len(userIDs) == 0 {
		return where, args
	}
	where += " AND userid IN (?" + strings.Repeat(", ?", len(userIDs)-1) + ")"
	for _, id := range userIDs {
		args = append(args, id)
	}
	return where, args
}
