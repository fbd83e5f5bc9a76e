// Package app wires configuration, storage, image processing, attachment
// definitions and the database into a RecordService.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/paperclip/internal/attachment"
	"github.com/dmitrijs2005/paperclip/internal/config"
	"github.com/dmitrijs2005/paperclip/internal/imageproc"
	"github.com/dmitrijs2005/paperclip/internal/logging"
	"github.com/dmitrijs2005/paperclip/internal/models"
	"github.com/dmitrijs2005/paperclip/internal/repositories/repomanager"
	"github.com/dmitrijs2005/paperclip/internal/services"
	"github.com/dmitrijs2005/paperclip/internal/storage"
	"github.com/dmitrijs2005/paperclip/internal/upload"
)

// openDB is a seam for tests.
var openDB = repomanager.Open

// App embeds the RecordService so it can be handed to the CLI directly.
type App struct {
	*services.RecordService

	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	disks       *storage.Disks
	registry    *attachment.Registry
}

// NewApp builds the application. Log output goes to logOut.
func NewApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	logger, err := logging.New(logOut, c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	disks, err := buildDisks(ctx, c)
	if err != nil {
		return nil, err
	}

	proc, err := imageproc.New(0)
	if err != nil {
		return nil, fmt.Errorf("image processor: %w", err)
	}

	registry := attachment.NewRegistry(models.RecordType,
		attachment.WithDisks(disks),
		attachment.WithProcessor(proc),
		attachment.WithUploadFactory(upload.NewFactory(
			upload.WithMaxSize(c.MaxUploadSize),
			upload.WithTimeout(c.DownloadTimeout),
		)),
		attachment.WithLogger(logger),
		attachment.WithWorkers(c.ProcessingWorkers),
	)

	defs, err := config.LoadAttachmentDefinitions(c.AttachmentsFile)
	if err != nil {
		return nil, err
	}
	if err := registry.RegisterDefinitions(defs); err != nil {
		return nil, err
	}
	registry.Seal()

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	records := services.NewRecordService(db, rm, registry, attachment.NewCoordinator(logger), logger)

	logger.Debug(ctx, "app initialized", "disks", disks.Names(), "attachments", registry.Names())

	return &App{
		RecordService: records,
		config:        c,
		logger:        logger,
		db:            db,
		repomanager:   rm,
		disks:         disks,
		registry:      registry,
	}, nil
}

func (app *App) Records() *services.RecordService { return app.RecordService }

func (app *App) Registry() *attachment.Registry { return app.registry }

func (app *App) Logger() logging.Logger { return app.logger }

// Migrate applies the embedded schema migrations.
func (app *App) Migrate(ctx context.Context) error {
	app.logger.Info(ctx, "running migrations")
	return app.repomanager.RunMigrations(ctx, app.db)
}

func (app *App) Close() error {
	return app.db.Close()
}

// WithSignals returns a context canceled on SIGINT, SIGTERM or SIGQUIT.
func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigs)
	}()

	return ctx, cancel
}
