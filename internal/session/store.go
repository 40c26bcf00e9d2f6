package session

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"fiscal-reconciliation-service/internal/models"
	apperrors "fiscal-reconciliation-service/pkg/errors"
)

// Store persists sessions, candidate records and matches in SQLite.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	company      TEXT NOT NULL DEFAULT '',
	period_start TEXT NOT NULL,
	period_end   TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS candidate_records (
	id                    TEXT PRIMARY KEY,
	session_id            TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	source_type           TEXT NOT NULL,
	source_file           TEXT NOT NULL DEFAULT '',
	source_row            INTEGER NOT NULL DEFAULT 0,
	record_date           TEXT,
	amount                TEXT NOT NULL,
	counterparty_name     TEXT NOT NULL DEFAULT '',
	counterparty_original TEXT NOT NULL DEFAULT '',
	document_reference    TEXT NOT NULL DEFAULT '',
	direction             TEXT NOT NULL,
	needs_review          INTEGER NOT NULL DEFAULT 0,
	import_order          INTEGER NOT NULL,
	imported_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_session ON candidate_records(session_id);
CREATE INDEX IF NOT EXISTS idx_records_session_type ON candidate_records(session_id, source_type);

CREATE TABLE IF NOT EXISTS matches (
	id                 TEXT PRIMARY KEY,
	session_id         TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	record_a           TEXT NOT NULL REFERENCES candidate_records(id) ON DELETE CASCADE,
	record_b           TEXT NOT NULL REFERENCES candidate_records(id) ON DELETE CASCADE,
	scheme             TEXT NOT NULL,
	match_type         TEXT NOT NULL,
	confidence         REAL NOT NULL,
	score_amount       REAL NOT NULL DEFAULT 0,
	score_date         REAL NOT NULL DEFAULT 0,
	score_counterparty REAL NOT NULL DEFAULT 0,
	score_reference    REAL NOT NULL DEFAULT 0,
	created_at         TEXT NOT NULL,
	UNIQUE(session_id, record_a),
	UNIQUE(session_id, record_b)
);

CREATE INDEX IF NOT EXISTS idx_matches_session ON matches(session_id);
`

// NewStore opens (and migrates) a SQLite database at the given path. Use
// ":memory:" for an ephemeral store.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to open database", err).
			WithContext("path", dbPath)
	}

	// SQLite serializes writes; a single connection avoids table locks
	// between the session mutex and the driver.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to enable foreign keys", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to run migrations", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

const dateLayout = "2006-01-02"
const timeLayout = time.RFC3339Nano

// CreateSession persists a new session
func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, company, period_start, period_end, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.Company,
		sess.PeriodStart.Format(dateLayout), sess.PeriodEnd.Format(dateLayout),
		sess.CreatedAt.Format(timeLayout), sess.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to create session", err).
			WithContext("session_id", sess.ID)
	}
	return nil
}

// GetSession loads a session by ID
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, company, period_start, period_end, created_at, updated_at
		FROM sessions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewStorageError(apperrors.CodeSessionNotFound, "session not found", nil).
			WithContext("session_id", id).
			WithSuggestion("list sessions to see available IDs")
	}
	if err != nil {
		return nil, apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to load session", err)
	}
	return sess, nil
}

// ListSessions returns all sessions, newest first
func (s *Store) ListSessions(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, company, period_start, period_end, created_at, updated_at
		FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to list sessions", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to scan session", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session; its records and matches cascade.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to delete session", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewStorageError(apperrors.CodeSessionNotFound, "session not found", nil).
			WithContext("session_id", id)
	}
	return nil
}

// TouchSession bumps a session's updated_at timestamp
func (s *Store) TouchSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to touch session", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var periodStart, periodEnd, createdAt, updatedAt string
	if err := row.Scan(&sess.ID, &sess.Name, &sess.Company, &periodStart, &periodEnd, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if sess.PeriodStart, err = time.Parse(dateLayout, periodStart); err != nil {
		return nil, err
	}
	if sess.PeriodEnd, err = time.Parse(dateLayout, periodEnd); err != nil {
		return nil, err
	}
	if sess.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, err
	}
	if sess.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, err
	}
	return &sess, nil
}

// AddRecords inserts a batch of candidate records in one transaction
func (s *Store) AddRecords(ctx context.Context, records []*models.CandidateRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candidate_records
		(id, session_id, source_type, source_file, source_row, record_date,
		 amount, counterparty_name, counterparty_original, document_reference,
		 direction, needs_review, import_order, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to prepare insert", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var recordDate interface{}
		if rec.HasDate() {
			recordDate = rec.Date.Format(dateLayout)
		}

		_, err := stmt.ExecContext(ctx,
			rec.ID, rec.SessionID, string(rec.SourceType),
			rec.SourceRef.File, rec.SourceRef.Row, recordDate,
			rec.Amount.String(), rec.CounterpartyName, rec.CounterpartyOriginal,
			rec.DocumentReference, string(rec.Direction),
			boolToInt(rec.NeedsReview), rec.ImportOrder,
			rec.ImportedAt.Format(timeLayout),
		)
		if err != nil {
			return apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to insert record", err).
				WithContext("record_id", rec.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to commit records", err)
	}
	return nil
}

// ListRecords loads all records of a session in import order
func (s *Store) ListRecords(ctx context.Context, sessionID string) ([]*models.CandidateRecord, error) {
	return s.queryRecords(ctx, `
		SELECT id, session_id, source_type, source_file, source_row, record_date,
		       amount, counterparty_name, counterparty_original, document_reference,
		       direction, needs_review, import_order, imported_at
		FROM candidate_records WHERE session_id = ? ORDER BY import_order`, sessionID)
}

// ListRecordsByType loads a session's records of one source type in import order
func (s *Store) ListRecordsByType(ctx context.Context, sessionID string, sourceType models.SourceType) ([]*models.CandidateRecord, error) {
	return s.queryRecords(ctx, `
		SELECT id, session_id, source_type, source_file, source_row, record_date,
		       amount, counterparty_name, counterparty_original, document_reference,
		       direction, needs_review, import_order, imported_at
		FROM candidate_records WHERE session_id = ? AND source_type = ?
		ORDER BY import_order`, sessionID, string(sourceType))
}

// ListUnmatchedRecords loads a session's records that appear in no match
func (s *Store) ListUnmatchedRecords(ctx context.Context, sessionID string) ([]*models.CandidateRecord, error) {
	return s.queryRecords(ctx, `
		SELECT r.id, r.session_id, r.source_type, r.source_file, r.source_row, r.record_date,
		       r.amount, r.counterparty_name, r.counterparty_original, r.document_reference,
		       r.direction, r.needs_review, r.import_order, r.imported_at
		FROM candidate_records r
		WHERE r.session_id = ?
		  AND NOT EXISTS (
			SELECT 1 FROM matches m
			WHERE m.session_id = r.session_id
			  AND (m.record_a = r.id OR m.record_b = r.id))
		ORDER BY r.import_order`, sessionID)
}

// GetRecord loads one record by ID
func (s *Store) GetRecord(ctx context.Context, id string) (*models.CandidateRecord, error) {
	records, err := s.queryRecords(ctx, `
		SELECT id, session_id, source_type, source_file, source_row, record_date,
		       amount, counterparty_name, counterparty_original, document_reference,
		       direction, needs_review, import_order, imported_at
		FROM candidate_records WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperrors.NewStorageError(apperrors.CodeRecordNotFound, "record not found", nil).
			WithContext("record_id", id)
	}
	return records[0], nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*models.CandidateRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to query records", err)
	}
	defer rows.Close()

	var records []*models.CandidateRecord
	for rows.Next() {
		var rec models.CandidateRecord
		var sourceType, direction, amount, importedAt string
		var recordDate sql.NullString
		var needsReview int

		err := rows.Scan(&rec.ID, &rec.SessionID, &sourceType,
			&rec.SourceRef.File, &rec.SourceRef.Row, &recordDate,
			&amount, &rec.CounterpartyName, &rec.CounterpartyOriginal,
			&rec.DocumentReference, &direction, &needsReview,
			&rec.ImportOrder, &importedAt)
		if err != nil {
			return nil, apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to scan record", err)
		}

		rec.SourceType = models.SourceType(sourceType)
		rec.Direction = models.Direction(direction)
		rec.NeedsReview = needsReview != 0

		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, apperrors.NewStorageError(apperrors.CodeStorageFailure, "corrupt amount in storage", err).
				WithContext("record_id", rec.ID)
		}
		if recordDate.Valid {
			d, err := time.Parse(dateLayout, recordDate.String)
			if err != nil {
				return nil, apperrors.NewStorageError(apperrors.CodeStorageFailure, "corrupt date in storage", err).
					WithContext("record_id", rec.ID)
			}
			rec.Date = &d
		}
		if rec.ImportedAt, err = time.Parse(timeLayout, importedAt); err != nil {
			return nil, apperrors.NewStorageError(apperrors.CodeStorageFailure, "corrupt timestamp in storage", err)
		}

		records = append(records, &rec)
	}
	return records, rows.Err()
}

// InsertMatches persists a batch of matches in one transaction. The unique
// constraints on (session_id, record_a) and (session_id, record_b) make
// one-to-one matching a database invariant, not just an engine promise.
func (s *Store) InsertMatches(ctx context.Context, matches []*models.Match) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO matches
		(id, session_id, record_a, record_b, scheme, match_type, confidence,
		 score_amount, score_date, score_counterparty, score_reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to prepare insert", err)
	}
	defer stmt.Close()

	for _, m := range matches {
		if err := m.Validate(); err != nil {
			return apperrors.NewValidationError(apperrors.CodeInvalidData, "invalid match", err).
				WithContext("match_id", m.ID)
		}

		_, err := stmt.ExecContext(ctx,
			m.ID, m.SessionID, m.RecordA, m.RecordB,
			string(m.Scheme), string(m.MatchType), m.Confidence,
			m.Scores.Amount, m.Scores.Date, m.Scores.Counterparty, m.Scores.Reference,
			m.CreatedAt.Format(timeLayout),
		)
		if err != nil {
			return apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to insert match", err).
				WithContext("match_id", m.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to commit matches", err)
	}
	return nil
}

// ListMatches loads all matches of a session, newest first
func (s *Store) ListMatches(ctx context.Context, sessionID string) ([]*models.Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, record_a, record_b, scheme, match_type, confidence,
		       score_amount, score_date, score_counterparty, score_reference, created_at
		FROM matches WHERE session_id = ? ORDER BY created_at DESC, id`, sessionID)
	if err != nil {
		return nil, apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to query matches", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		var m models.Match
		var scheme, matchType, createdAt string

		err := rows.Scan(&m.ID, &m.SessionID, &m.RecordA, &m.RecordB,
			&scheme, &matchType, &m.Confidence,
			&m.Scores.Amount, &m.Scores.Date, &m.Scores.Counterparty, &m.Scores.Reference,
			&createdAt)
		if err != nil {
			return nil, apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to scan match", err)
		}

		m.Scheme = models.PairingScheme(scheme)
		m.MatchType = models.MatchType(matchType)
		if m.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, apperrors.NewStorageError(apperrors.CodeStorageFailure, "corrupt timestamp in storage", err)
		}

		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

// DeleteAutomaticMatches removes engine-committed matches of a session,
// leaving manual matches untouched. Returns how many were removed.
func (s *Store) DeleteAutomaticMatches(ctx context.Context, sessionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM matches WHERE session_id = ? AND match_type != ?`,
		sessionID, string(models.MatchManual))
	if err != nil {
		return 0, apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to delete automatic matches", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteMatch removes one match by ID, scoped to its session so a match ID
// from another session is reported as not found rather than deleted.
func (s *Store) DeleteMatch(ctx context.Context, sessionID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM matches WHERE id = ? AND session_id = ?`, id, sessionID)
	if err != nil {
		return apperrors.NewStorageError(apperrors.CodeStorageFailure, "failed to delete match", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewStorageError(apperrors.CodeRecordNotFound, "match not found in session", nil).
			WithContext("match_id", id).
			WithContext("session_id", sessionID)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
