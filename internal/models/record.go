// Package models defines the host entities persisted in the database.
package models

import (
	"context"
	"time"

	"github.com/dmitrijs2005/paperclip/internal/attachment"
)

// RecordType is the class name records use in storage paths.
const RecordType = "records"

// RecordRow is the persisted form of a Record.
type RecordRow struct {
	ID          string
	Kind        string
	Title       string
	Attachments map[string]*attachment.Metadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MetadataWriter persists the metadata of a single attachment of a record.
type MetadataWriter interface {
	WriteAttachmentMetadata(ctx context.Context, r *Record, name string, meta *attachment.Metadata) error
}

// Record is a generic entity carrying attachments.
type Record struct {
	ID        string
	Kind      string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time

	attachments *attachment.Set
	writer      MetadataWriter
}

// NewRecord binds a fresh attachment set from reg. writer receives the
// metadata write-backs issued after files are stored.
func NewRecord(reg *attachment.Registry, writer MetadataWriter) *Record {
	return &Record{attachments: reg.Bind(), writer: writer}
}

// Hydrate copies a loaded row into r, attachments included.
func (r *Record) Hydrate(row *RecordRow) {
	r.ID = row.ID
	r.Kind = row.Kind
	r.Title = row.Title
	r.CreatedAt = row.CreatedAt
	r.UpdatedAt = row.UpdatedAt
	r.attachments.Load(row.Attachments)
}

// Row returns the persisted form of r.
func (r *Record) Row() *RecordRow {
	return &RecordRow{
		ID:          r.ID,
		Kind:        r.Kind,
		Title:       r.Title,
		Attachments: r.attachments.Snapshot(),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r *Record) AttachableType() string { return RecordType }

func (r *Record) AttachableID() string { return r.ID }

func (r *Record) Attachments() *attachment.Set { return r.attachments }

func (r *Record) WriteAttachmentMetadata(ctx context.Context, name string, meta *attachment.Metadata) error {
	if r.writer == nil {
		return nil
	}
	return r.writer.WriteAttachmentMetadata(ctx, r, name, meta)
}
