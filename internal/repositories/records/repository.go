// Package records persists records and the attachment metadata stored in
// their JSONB attachments column.
package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/paperclip/internal/attachment"
	"github.com/dmitrijs2005/paperclip/internal/models"
)

type Repository interface {
	Insert(ctx context.Context, row *models.RecordRow) error
	Update(ctx context.Context, row *models.RecordRow) error
	// UpdateAttachment replaces the metadata of one attachment; nil removes it.
	UpdateAttachment(ctx context.Context, id, name string, meta *attachment.Metadata, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*models.RecordRow, error)
	List(ctx context.Context, kind string) ([]*models.RecordRow, error)
}
