package attachment

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/dmitrijs2005/paperclip/internal/storage"
	"github.com/dmitrijs2005/paperclip/internal/upload"
	"github.com/dmitrijs2005/paperclip/internal/variant"
	"github.com/stretchr/testify/require"
)

// countingDisk records deletes and can fail selected operations.
type countingDisk struct {
	*storage.MemoryDisk

	mu         sync.Mutex
	writes     []string
	deletes    []string
	failWrite  map[string]error // keyed by variant directory
	failDelete map[string]error // keyed by path
}

func newCountingDisk() *countingDisk {
	return &countingDisk{
		MemoryDisk: storage.NewMemoryDisk("https://files.test"),
		failWrite:  map[string]error{},
		failDelete: map[string]error{},
	}
}

func (d *countingDisk) Write(ctx context.Context, p string, r io.Reader, contentType string) (string, error) {
	d.mu.Lock()
	for v, err := range d.failWrite {
		if strings.Contains(p, "/"+v+"/") {
			d.mu.Unlock()
			return "", err
		}
	}
	d.writes = append(d.writes, p)
	d.mu.Unlock()
	return d.MemoryDisk.Write(ctx, p, r, contentType)
}

func (d *countingDisk) Delete(ctx context.Context, p string) error {
	d.mu.Lock()
	d.deletes = append(d.deletes, p)
	err := d.failDelete[p]
	d.mu.Unlock()
	if err != nil {
		return err
	}
	return d.MemoryDisk.Delete(ctx, p)
}

func (d *countingDisk) deleted() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.deletes...)
}

func (d *countingDisk) written() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.writes...)
}

// countingProcessor returns the source unchanged and counts calls per
// variant.
type countingProcessor struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

func newCountingProcessor() *countingProcessor {
	return &countingProcessor{calls: map[string]int{}, fail: map[string]error{}}
}

func (p *countingProcessor) Process(_ context.Context, src *upload.File, plan variant.Plan) (*upload.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[plan.Name()]++
	if err := p.fail[plan.Name()]; err != nil {
		return nil, err
	}
	return src.WithName(src.Name()), nil
}

func (p *countingProcessor) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}

type testEntity struct {
	id        string
	set       *Set
	persisted map[string]*Metadata
	writes    int
	writeErr  error
	onWrite   func(ctx context.Context) error
}

func newEntity(reg *Registry, id string) *testEntity {
	return &testEntity{id: id, set: reg.Bind(), persisted: map[string]*Metadata{}}
}

func (e *testEntity) AttachableType() string { return "records" }
func (e *testEntity) AttachableID() string   { return e.id }
func (e *testEntity) Attachments() *Set      { return e.set }

func (e *testEntity) WriteAttachmentMetadata(ctx context.Context, name string, meta *Metadata) error {
	e.writes++
	if e.writeErr != nil {
		return e.writeErr
	}
	if meta == nil {
		delete(e.persisted, name)
	} else {
		e.persisted[name] = meta
	}
	if e.onWrite != nil {
		return e.onWrite(ctx)
	}
	return nil
}

type fixture struct {
	reg   *Registry
	disk  *countingDisk
	proc  *countingProcessor
	coord *Coordinator
}

func newFixture(t *testing.T, opts ...RegistryOption) *fixture {
	t.Helper()
	disks := storage.NewDisks("mem")
	disk := newCountingDisk()
	disks.Register("mem", disk)
	proc := newCountingProcessor()

	all := append([]RegistryOption{WithDisks(disks), WithProcessor(proc)}, opts...)
	return &fixture{
		reg:   NewRegistry("records", all...),
		disk:  disk,
		proc:  proc,
		coord: NewCoordinator(nil),
	}
}

func pngFile(t *testing.T, name string, w, h int) *upload.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, imaging.New(w, h, color.NRGBA{B: 255, A: 255})))
	return upload.NewFile(name, buf.Bytes(), "")
}

func collect(seq func(func(string) bool)) []string {
	var out []string
	for v := range seq {
		out = append(out, v)
	}
	return out
}
