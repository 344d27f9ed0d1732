// Package server initializes and runs the burnnote server: it wires storage,
// the note lifecycle engine with its deletion scheduler, and the HTTP
// endpoint, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dvoloshins/burnnote/internal/logging"
	"github.com/dvoloshins/burnnote/internal/server/blob"
	"github.com/dvoloshins/burnnote/internal/server/config"
	"github.com/dvoloshins/burnnote/internal/server/httpapi"
	"github.com/dvoloshins/burnnote/internal/server/repositories/repomanager"
	"github.com/dvoloshins/burnnote/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	notes  *services.NoteService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	var blobs blob.Store
	if c.S3Enabled() {
		blobs, err = blob.NewS3Store(ctx, blob.S3Options{
			RootUser:     c.S3RootUser,
			RootPassword: c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("blob store init error: %w", err)
		}
	}

	notes := services.NewNoteService(rm.Notes(db), blobs, logger, c.DeleteGracePeriod)

	return &App{config: c, logger: logger, db: db, notes: notes}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.notes, app.logger, app.config.MaxRequestBodyBytes)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	// notes consumed before the last shutdown but never physically deleted
	// are removed now; the read_once flag in the store is authoritative
	if err := app.notes.Scheduler().SweepConsumed(ctx); err != nil {
		app.logger.Error(ctx, "startup sweep failed", "error", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.notes.Scheduler().Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
