// Package server wires the storage engine together from configuration and
// runs the admin gRPC endpoint until it receives a termination signal.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/fhirkeeper/internal/logging"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/config"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/documents"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/resourcetypes"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/services"
	"github.com/dmitrijs2005/fhirkeeper/internal/timex"

	gs "github.com/dmitrijs2005/fhirkeeper/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	Store       *services.ResourceStore
	Snapshots   *services.SnapshotService
	Sequence    *services.SequenceGenerator
	Maintenance *services.Maintenance
}

// NewApp opens the database, builds the engine and provisions the schema.
// Logs go to out as JSON lines.
func NewApp(ctx context.Context, c *config.Config, out io.Writer) (*App, error) {
	logger := logging.NewJSONLogger(out, c.LogLevel)

	db, rm, err := repomanager.Open(c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	var blobs blobstore.Store
	if c.UseExternalBlobs {
		blobs = blobstore.NewS3(blobstore.S3Config{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
			Prefix:       c.S3Prefix,
		})
	}

	clock := timex.NewMonotonicClock()
	registry := resourcetypes.Default()
	policy := services.NewBinaryPolicy(blobs, services.BlobConfig{
		External:      c.UseExternalBlobs,
		MaxBinarySize: c.MaxBinarySize,
	}, logger)
	mapper := documents.NewMapper(registry, policy)
	batches := services.NewBatchCoordinator(db, rm, mapper, policy, logger, registry.ValidateBatch)
	sequence := services.NewSequenceGenerator(db, rm)

	app := &App{
		config:      c,
		logger:      logger,
		db:          db,
		Store:       services.NewResourceStore(db, rm, mapper, batches, sequence, clock),
		Snapshots:   services.NewSnapshotService(db, rm, mapper, clock),
		Sequence:    sequence,
		Maintenance: services.NewMaintenance(db, rm, policy, logger),
	}

	if err := app.Maintenance.EnsureIndices(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("schema init error: %w", err), db.Close())
	}

	logger.Info(ctx, "engine ready",
		"driver", c.DatabaseDriver,
		"external_blobs", c.UseExternalBlobs,
		"max_binary_size", c.MaxBinarySize,
	)
	return app, nil
}

// Close releases the database.
func (app *App) Close() error {
	return app.db.Close()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves the admin endpoint until ctx is done or a signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.Store, app.Sequence, app.Maintenance)
	s.ShutdownTimeout = app.config.ShutdownTimeout

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
		return err
	}

	app.logger.Info(ctx, "App stopped")
	return nil
}
