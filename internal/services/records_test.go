package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/disintegration/imaging"
	"github.com/dmitrijs2005/paperclip/internal/attachment"
	"github.com/dmitrijs2005/paperclip/internal/common"
	"github.com/dmitrijs2005/paperclip/internal/dbx"
	"github.com/dmitrijs2005/paperclip/internal/imageproc"
	"github.com/dmitrijs2005/paperclip/internal/models"
	"github.com/dmitrijs2005/paperclip/internal/repositories/records"
	"github.com/dmitrijs2005/paperclip/internal/repositories/repomanager"
	"github.com/dmitrijs2005/paperclip/internal/storage"
	"github.com/dmitrijs2005/paperclip/internal/upload"
	"github.com/dmitrijs2005/paperclip/internal/variant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recordID = "5e5c7e4b-1c2d-4f00-8a9b-123456789abc"

// -------- test fakes --------

type fakeRecordsRepo struct {
	records.Repository

	mu   sync.Mutex
	rows map[string]*models.RecordRow

	insertErr    error
	updateAttErr error
	deleteErr    error
	attWrites    int
}

func newFakeRecordsRepo() *fakeRecordsRepo {
	return &fakeRecordsRepo{rows: map[string]*models.RecordRow{}}
}

func copyRow(row *models.RecordRow) *models.RecordRow {
	c := *row
	c.Attachments = make(map[string]*attachment.Metadata, len(row.Attachments))
	for k, v := range row.Attachments {
		c.Attachments[k] = v.Clone()
	}
	return &c
}

func (f *fakeRecordsRepo) Insert(ctx context.Context, row *models.RecordRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.rows[row.ID] = copyRow(row)
	return nil
}

func (f *fakeRecordsRepo) Update(ctx context.Context, row *models.RecordRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[row.ID]; !ok {
		return common.ErrorNotFound
	}
	f.rows[row.ID] = copyRow(row)
	return nil
}

func (f *fakeRecordsRepo) UpdateAttachment(ctx context.Context, id, name string, meta *attachment.Metadata, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attWrites++
	if f.updateAttErr != nil {
		return f.updateAttErr
	}
	row, ok := f.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	if meta == nil {
		delete(row.Attachments, name)
	} else {
		row.Attachments[name] = meta.Clone()
	}
	row.UpdatedAt = updatedAt
	return nil
}

func (f *fakeRecordsRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeRecordsRepo) GetByID(ctx context.Context, id string) (*models.RecordRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyRow(row), nil
}

func (f *fakeRecordsRepo) List(ctx context.Context, kind string) ([]*models.RecordRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.RecordRow
	for _, row := range f.rows {
		if kind == "" || row.Kind == kind {
			out = append(out, copyRow(row))
		}
	}
	return out, nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	r *fakeRecordsRepo
}

func (m *fakeRepoManager) Records(db dbx.DBTX) records.Repository { return m.r }

// -------- helpers --------

type env struct {
	svc  *RecordService
	repo *fakeRecordsRepo
	disk *storage.MemoryDisk
	mock sqlmock.Sqlmock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	disks := storage.NewDisks("mem")
	disk := storage.NewMemoryDisk("https://cdn.test")
	disks.Register("mem", disk)

	proc, err := imageproc.New(0)
	require.NoError(t, err)

	reg := attachment.NewRegistry(models.RecordType, attachment.WithDisks(disks), attachment.WithProcessor(proc))
	require.NoError(t, reg.Register("avatar", attachment.Options{
		Variants: []variant.Plan{variant.New("thumb").Fit(20, 20).MustBuild()},
		Default:  "thumb",
	}))

	repo := newFakeRecordsRepo()
	svc := NewRecordService(db, &fakeRepoManager{r: repo}, reg, attachment.NewCoordinator(nil), nil)
	svc.newID = func() string { return recordID }
	svc.now = func() time.Time { return time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC) }

	return &env{svc: svc, repo: repo, disk: disk, mock: mock}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, imaging.New(w, h, color.NRGBA{R: 200, A: 255})))
	return buf.Bytes()
}

func (e *env) expectTx() {
	e.mock.ExpectBegin()
	e.mock.ExpectCommit()
}

// -------- tests --------

func TestSave_InsertProcessesAttachments(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.expectTx()

	r := e.svc.New("photo", "Cat")
	require.NoError(t, r.Attachments().Set(ctx, "avatar", upload.NewFile("cat.png", pngBytes(t, 80, 40), "")))
	require.NoError(t, e.svc.Save(ctx, r))

	assert.Equal(t, recordID, r.ID)
	assert.Equal(t, time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC), r.CreatedAt)

	row := e.repo.rows[recordID]
	require.NotNil(t, row)
	require.Contains(t, row.Attachments, "avatar")
	assert.Equal(t, "records/5e5/c7e/4b1/avatar/thumb/cat.png", row.Attachments["avatar"].Path("thumb"))
	assert.Equal(t, 1, e.repo.attWrites)

	assert.Equal(t, []string{
		"records/5e5/c7e/4b1/avatar/original/cat.png",
		"records/5e5/c7e/4b1/avatar/thumb/cat.png",
	}, e.disk.Keys())

	thumb, ok := e.disk.Object("records/5e5/c7e/4b1/avatar/thumb/cat.png")
	require.True(t, ok)
	img, err := png.Decode(bytes.NewReader(thumb.Data))
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 10, img.Bounds().Dy())

	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestSave_InsertErrorRollsBack(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.repo.insertErr = errors.New("unique violation")
	e.mock.ExpectBegin()
	e.mock.ExpectRollback()

	r := e.svc.New("photo", "Cat")
	require.NoError(t, r.Attachments().Set(ctx, "avatar", pngBytes(t, 10, 10)))

	err := e.svc.Save(ctx, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save record")
	assert.Empty(t, r.ID)
	assert.Empty(t, e.disk.Keys())

	a, _ := r.Attachments().Get("avatar")
	assert.Equal(t, attachment.StatePendingUpload, a.State())

	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestSave_MetadataWriteFailureReportsOrphans(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.expectTx()
	e.repo.updateAttErr = errors.New("db gone")

	r := e.svc.New("photo", "Cat")
	require.NoError(t, r.Attachments().Set(ctx, "avatar", upload.NewFile("cat.png", pngBytes(t, 10, 10), "")))

	err := e.svc.Save(ctx, r)
	require.ErrorIs(t, err, common.ErrProcessing)

	var pe *attachment.ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Len(t, pe.Orphans, 2)
	assert.True(t, r.Attachments().Updated())
}

func TestGetAndAttach(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.expectTx()
	e.expectTx()

	r := e.svc.New("photo", "Cat")
	require.NoError(t, e.svc.Save(ctx, r))

	_, err := e.svc.Attach(ctx, recordID, "avatar", upload.NewFile("cat.png", pngBytes(t, 30, 30), ""))
	require.NoError(t, err)

	loaded, err := e.svc.Get(ctx, recordID)
	require.NoError(t, err)
	a, err := loaded.Attachments().Get("avatar")
	require.NoError(t, err)
	assert.True(t, a.Exists())
	assert.Equal(t, "cat.png", a.OriginalFilename())

	url, err := a.URL("")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/records/5e5/c7e/4b1/avatar/thumb/cat.png", url)

	_, err = e.svc.Get(ctx, "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)

	_, err = e.svc.Attach(ctx, recordID, "cover", []byte("x"))
	require.ErrorIs(t, err, common.ErrUnknownAttachment)

	list, err := e.svc.List(ctx, "photo")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Cat", list[0].Title)

	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestDetachRemovesFiles(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.expectTx()
	e.expectTx()

	r := e.svc.New("photo", "Cat")
	require.NoError(t, r.Attachments().Set(ctx, "avatar", upload.NewFile("cat.png", pngBytes(t, 10, 10), "")))
	require.NoError(t, e.svc.Save(ctx, r))
	require.Len(t, e.disk.Keys(), 2)

	detached, err := e.svc.Detach(ctx, recordID, "avatar")
	require.NoError(t, err)

	a, _ := detached.Attachments().Get("avatar")
	assert.False(t, a.Exists())
	assert.Empty(t, e.disk.Keys())
	assert.NotContains(t, e.repo.rows[recordID].Attachments, "avatar")
}

func TestDeleteRemovesRowAndFiles(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.expectTx()

	r := e.svc.New("photo", "Cat")
	require.NoError(t, r.Attachments().Set(ctx, "avatar", upload.NewFile("cat.png", pngBytes(t, 10, 10), "")))
	require.NoError(t, e.svc.Save(ctx, r))

	require.NoError(t, e.svc.Delete(ctx, r))
	assert.Empty(t, e.repo.rows)
	assert.Empty(t, e.disk.Keys())

	a, _ := r.Attachments().Get("avatar")
	assert.Equal(t, attachment.StateDeleted, a.State())
}

func TestDeleteKeepsFilesWhenRowDeleteFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.expectTx()

	r := e.svc.New("photo", "Cat")
	require.NoError(t, r.Attachments().Set(ctx, "avatar", upload.NewFile("cat.png", pngBytes(t, 10, 10), "")))
	require.NoError(t, e.svc.Save(ctx, r))

	e.repo.deleteErr = errors.New("fk violation")
	err := e.svc.Delete(ctx, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete record")
	assert.Len(t, e.disk.Keys(), 2)
}

func TestNewRecordService_Defaults(t *testing.T) {
	reg := attachment.NewRegistry(models.RecordType)
	svc := NewRecordService(&sql.DB{}, &fakeRepoManager{r: newFakeRecordsRepo()}, reg, attachment.NewCoordinator(nil), nil)

	assert.NotNil(t, svc.logger)
	assert.Len(t, svc.newID(), 36)
	assert.NotEqual(t, svc.newID(), svc.newID())
}
