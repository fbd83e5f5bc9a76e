// Package services implements record persistence with attachment
// processing around it.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/paperclip/internal/attachment"
	"github.com/dmitrijs2005/paperclip/internal/dbx"
	"github.com/dmitrijs2005/paperclip/internal/logging"
	"github.com/dmitrijs2005/paperclip/internal/models"
	"github.com/dmitrijs2005/paperclip/internal/repositories/repomanager"
	"github.com/google/uuid"
)

// RecordService saves and deletes records and runs the attachment
// coordinator around each operation.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	registry    *attachment.Registry
	coordinator *attachment.Coordinator
	logger      logging.Logger

	newID func() string
	now   func() time.Time
}

func NewRecordService(db *sql.DB, rm repomanager.RepositoryManager, registry *attachment.Registry, coordinator *attachment.Coordinator, logger logging.Logger) *RecordService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RecordService{
		db:          db,
		repomanager: rm,
		registry:    registry,
		coordinator: coordinator,
		logger:      logger,
		newID:       func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

// New returns an unsaved record bound to the service.
func (s *RecordService) New(kind, title string) *models.Record {
	r := models.NewRecord(s.registry, s)
	r.Kind = kind
	r.Title = title
	return r
}

func (s *RecordService) Get(ctx context.Context, id string) (*models.Record, error) {
	row, err := s.repomanager.Records(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r := models.NewRecord(s.registry, s)
	r.Hydrate(row)
	return r, nil
}

func (s *RecordService) List(ctx context.Context, kind string) ([]*models.Record, error) {
	rows, err := s.repomanager.Records(s.db).List(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Record, 0, len(rows))
	for _, row := range rows {
		r := models.NewRecord(s.registry, s)
		r.Hydrate(row)
		out = append(out, r)
	}
	return out, nil
}

// Save inserts a new record (assigning its id) or updates an existing one,
// then processes pending attachment changes. The row is committed before
// files are written, so attachment errors leave a saved record with its
// previous attachment metadata.
func (s *RecordService) Save(ctx context.Context, r *models.Record) error {
	now := s.now().UTC()
	insert := r.ID == ""

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Records(tx)
		if insert {
			r.ID = s.newID()
			r.CreatedAt = now
			r.UpdatedAt = now
			return repo.Insert(ctx, r.Row())
		}
		r.UpdatedAt = now
		return repo.Update(ctx, r.Row())
	})
	if err != nil {
		if insert {
			r.ID = ""
		}
		return fmt.Errorf("save record: %w", err)
	}

	s.logger.Debug(ctx, "record saved", "id", r.ID, "insert", insert)
	return s.coordinator.Saved(ctx, r)
}

// Delete removes the record row, then its attachment files. A failure to
// remove files is returned after the row is gone.
func (s *RecordService) Delete(ctx context.Context, r *models.Record) error {
	if err := s.coordinator.Deleting(ctx, r); err != nil {
		return err
	}
	if err := s.repomanager.Records(s.db).Delete(ctx, r.ID); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	s.logger.Info(ctx, "record deleted", "id", r.ID)
	return s.coordinator.Deleted(ctx, r)
}

// Attach assigns value (anything the upload factory accepts) to the named
// attachment of record id and saves it.
func (s *RecordService) Attach(ctx context.Context, id, name string, value any) (*models.Record, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.Attachments().Set(ctx, name, value); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Detach clears the named attachment of record id and removes its files.
func (s *RecordService) Detach(ctx context.Context, id, name string) (*models.Record, error) {
	return s.Attach(ctx, id, name, attachment.Null)
}

// WriteAttachmentMetadata persists one attachment's metadata. The write is
// a save of the record, so it goes through the coordinator as well.
func (s *RecordService) WriteAttachmentMetadata(ctx context.Context, r *models.Record, name string, meta *attachment.Metadata) error {
	now := s.now().UTC()
	if err := s.repomanager.Records(s.db).UpdateAttachment(ctx, r.ID, name, meta, now); err != nil {
		return fmt.Errorf("write attachment %q: %w", name, err)
	}
	r.UpdatedAt = now
	return s.coordinator.Saved(ctx, r)
}
