package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"facturasv/internal/dte/models"
	"facturasv/pkg/domain"
	"facturasv/pkg/platform/sentinel"
)

// PostgresStore implements Store on database/sql. The single UPDATE with a
// state predicate is the compare-and-set: the row either moves or it doesn't.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a lifecycle store on the given connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is the DDL for the lifecycle table; applied by migrations, kept here
// so tests and operators see the shape next to the queries.
const Schema = `
CREATE TABLE IF NOT EXISTS dte_lifecycle (
	document_id         TEXT PRIMARY KEY,
	taxpayer_nit        TEXT NOT NULL,
	tipo_dte            TEXT NOT NULL,
	state               TEXT NOT NULL,
	state_entered_at    TIMESTAMPTZ NOT NULL,
	last_error          TEXT NOT NULL DEFAULT '',
	attempt_count       INT NOT NULL DEFAULT 0,
	authority_reference TEXT NOT NULL DEFAULT ''
)`

func (s *PostgresStore) Create(ctx context.Context, rec *models.LifecycleRecord) error {
	const query = `
		INSERT INTO dte_lifecycle
			(document_id, taxpayer_nit, tipo_dte, state, state_entered_at, last_error, attempt_count, authority_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.DocumentID.String(),
		rec.TaxpayerNIT,
		rec.Type.String(),
		rec.State.String(),
		rec.StateEnteredAt,
		rec.LastError,
		rec.AttemptCount,
		rec.AuthorityReference,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("record for %s: %w", rec.DocumentID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert lifecycle record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.GenerationCode) (*models.LifecycleRecord, error) {
	const query = `
		SELECT document_id, taxpayer_nit, tipo_dte, state, state_entered_at, last_error, attempt_count, authority_reference
		FROM dte_lifecycle WHERE document_id = $1
	`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record for %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("select lifecycle record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, id domain.GenerationCode, expected, next models.State, enteredAt time.Time, meta models.TransitionMeta) (*models.LifecycleRecord, error) {
	const query = `
		UPDATE dte_lifecycle SET
			state = $1,
			state_entered_at = $2,
			last_error = $3,
			authority_reference = CASE WHEN $4 <> '' THEN $4 ELSE authority_reference END,
			attempt_count = attempt_count + $5
		WHERE document_id = $6 AND state = $7
		RETURNING document_id, taxpayer_nit, tipo_dte, state, state_entered_at, last_error, attempt_count, authority_reference
	`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query,
		next.String(),
		enteredAt,
		meta.LastError,
		meta.AuthorityReference,
		meta.AttemptDelta,
		id.String(),
		expected.String(),
	))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update lifecycle record: %w", err)
	}

	// No row moved: distinguish a missing record from a state mismatch.
	if _, getErr := s.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("record for %s not in state %s: %w", id, expected, sentinel.ErrConflict)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.LifecycleRecord, error) {
	var rec models.LifecycleRecord
	var docID, tipo, state string
	err := row.Scan(
		&docID,
		&rec.TaxpayerNIT,
		&tipo,
		&state,
		&rec.StateEnteredAt,
		&rec.LastError,
		&rec.AttemptCount,
		&rec.AuthorityReference,
	)
	if err != nil {
		return nil, err
	}
	rec.DocumentID = domain.GenerationCode(docID)
	rec.Type = domain.DocumentType(tipo)
	rec.State = models.State(state)
	return &rec, nil
}
