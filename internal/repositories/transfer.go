package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

const transferColumns = `
	id, sequence, source_service, source_playlist_id, source_playlist_name,
	target_service, target_playlist_id, status, attempts, tracks_total,
	tracks_resolved, tracks_added, tracks_existing, error_message,
	started_at, completed_at, created_at, updated_at
`

// TransferRepository persists [models.TransferRecord] bookkeeping with soft delete support.
type TransferRepository struct {
	db *sql.DB
}

// NewTransferRepository creates a new TransferRepository with the given database connection
func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// TransferCriteria filters [TransferRepository.List]. Zero fields match everything.
type TransferCriteria struct {
	Status        models.TransferStatus
	SourceService models.ProviderID
	TargetService models.ProviderID
	Limit         int
}

// Create inserts rec with a generated ID and sequence.
func (r *TransferRepository) Create(ctx context.Context, rec *models.TransferRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(ctx, r.db, "transfers")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now()
	if rec.ID == "" {
		rec.ID = shared.GenerateID()
	}
	rec.Sequence = sequence
	rec.CreatedAt = now
	rec.UpdatedAt = now

	query := `INSERT INTO transfers (` + transferColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Sequence,
		string(rec.SourceService),
		rec.SourcePlaylistID,
		rec.SourcePlaylistName,
		string(rec.TargetService),
		nullable(rec.TargetPlaylistID),
		string(rec.Status),
		rec.Attempts,
		rec.TracksTotal,
		rec.TracksResolved,
		rec.TracksAdded,
		rec.TracksExisting,
		nullable(rec.ErrorMessage),
		rec.StartedAt,
		rec.CompletedAt,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	return nil
}

// Get retrieves a transfer by ID, excluding soft-deleted rows.
func (r *TransferRepository) Get(ctx context.Context, id string) (*models.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = ? AND deleted_at IS NULL`

	rec, err := scanTransfer(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transfer %s", shared.ErrRecordNotFound, id)
	}
	return rec, err
}

// Update writes the mutable fields of rec.
func (r *TransferRepository) Update(ctx context.Context, rec *models.TransferRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now()
	query := `
		UPDATE transfers
		SET target_playlist_id = ?, status = ?, attempts = ?, tracks_total = ?,
			tracks_resolved = ?, tracks_added = ?, tracks_existing = ?, error_message = ?,
			started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		nullable(rec.TargetPlaylistID),
		string(rec.Status),
		rec.Attempts,
		rec.TracksTotal,
		rec.TracksResolved,
		rec.TracksAdded,
		rec.TracksExisting,
		nullable(rec.ErrorMessage),
		rec.StartedAt,
		rec.CompletedAt,
		now,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transfer: %w", err)
	}
	if err := requireRow(result, rec.ID); err != nil {
		return err
	}

	rec.UpdatedAt = now
	return nil
}

// Delete soft-deletes a transfer by ID
func (r *TransferRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE transfers SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete transfer: %w", err)
	}
	return requireRow(result, id)
}

// List returns transfers matching c, newest first.
func (r *TransferRepository) List(ctx context.Context, c TransferCriteria) ([]*models.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE deleted_at IS NULL`
	args := []any{}

	if c.Status != "" {
		query += " AND status = ?"
		args = append(args, string(c.Status))
	}
	if c.SourceService != "" {
		query += " AND source_service = ?"
		args = append(args, string(c.SourceService))
	}
	if c.TargetService != "" {
		query += " AND target_service = ?"
		args = append(args, string(c.TargetService))
	}

	query += " ORDER BY sequence DESC"
	if c.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, c.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var records []*models.TransferRecord
	for rows.Next() {
		rec, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanTransfer scans a row from [sql.Row] or [sql.Rows] into a [models.TransferRecord].
func scanTransfer(row scanner) (*models.TransferRecord, error) {
	var (
		rec              models.TransferRecord
		sourceService    string
		targetService    string
		status           string
		targetPlaylistID sql.NullString
		errorMessage     sql.NullString
		startedAt        sql.NullTime
		completedAt      sql.NullTime
	)

	err := row.Scan(
		&rec.ID, &rec.Sequence, &sourceService, &rec.SourcePlaylistID, &rec.SourcePlaylistName,
		&targetService, &targetPlaylistID, &status, &rec.Attempts, &rec.TracksTotal,
		&rec.TracksResolved, &rec.TracksAdded, &rec.TracksExisting, &errorMessage,
		&startedAt, &completedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transfer: %w", err)
	}

	rec.SourceService = models.ProviderID(sourceService)
	rec.TargetService = models.ProviderID(targetService)
	rec.Status = models.TransferStatus(status)
	rec.TargetPlaylistID = targetPlaylistID.String
	rec.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		rec.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	return &rec, nil
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: transfer %s not found or already deleted", shared.ErrRecordNotFound, id)
	}
	return nil
}
