package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/paperclip/internal/attachment"
	"github.com/dmitrijs2005/paperclip/internal/common"
	"github.com/dmitrijs2005/paperclip/internal/dbx"
	"github.com/dmitrijs2005/paperclip/internal/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, row *models.RecordRow) error {
	attachments, err := encodeAttachments(row.Attachments)
	if err != nil {
		return err
	}

	query := `INSERT INTO records (id, kind, title, attachments, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	res, err := r.db.ExecContext(ctx, query, row.ID, row.Kind, row.Title, attachments, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) Update(ctx context.Context, row *models.RecordRow) error {
	attachments, err := encodeAttachments(row.Attachments)
	if err != nil {
		return err
	}

	query := `UPDATE records SET kind = $2, title = $3, attachments = $4, updated_at = $5
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, row.ID, row.Kind, row.Title, attachments, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) UpdateAttachment(ctx context.Context, id, name string, meta *attachment.Metadata, updatedAt time.Time) error {
	var (
		res sql.Result
		err error
	)

	if meta == nil {
		query := `UPDATE records SET attachments = attachments - $2, updated_at = $3 WHERE id = $1`
		res, err = r.db.ExecContext(ctx, query, id, name, updatedAt)
	} else {
		b, mErr := json.Marshal(meta)
		if mErr != nil {
			return fmt.Errorf("encode attachment %q: %w", name, mErr)
		}
		query := `UPDATE records SET attachments = jsonb_set(attachments, ARRAY[$2::text], $3::jsonb, true), updated_at = $4
			WHERE id = $1`
		res, err = r.db.ExecContext(ctx, query, id, name, string(b), updatedAt)
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.RecordRow, error) {
	query := `SELECT id, kind, title, attachments, created_at, updated_at FROM records WHERE id = $1`

	row, err := scanRow(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select record: %w", err)
	}
	return row, nil
}

// List returns records ordered by creation time; an empty kind matches all.
func (r *PostgresRepository) List(ctx context.Context, kind string) ([]*models.RecordRow, error) {
	query := `SELECT id, kind, title, attachments, created_at, updated_at FROM records
		WHERE $1 = '' OR kind = $1
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.RecordRow
	for rows.Next() {
		item, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (*models.RecordRow, error) {
	var (
		row         models.RecordRow
		attachments []byte
	)
	if err := s.Scan(&row.ID, &row.Kind, &row.Title, &attachments, &row.CreatedAt, &row.UpdatedAt); err != nil {
		return nil, err
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &row.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments of %s: %w", row.ID, err)
		}
	}
	return &row, nil
}

func encodeAttachments(m map[string]*attachment.Metadata) (string, error) {
	if m == nil {
		m = map[string]*attachment.Metadata{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode attachments: %w", err)
	}
	return string(b), nil
}
