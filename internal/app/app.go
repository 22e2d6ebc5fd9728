// Package app assembles the question pipeline and index maintenance from
// configuration. Both the API server and the indexer build on it.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/querylens/querylens/internal/api"
	"github.com/querylens/querylens/internal/archive"
	"github.com/querylens/querylens/internal/config"
	"github.com/querylens/querylens/internal/database"
	"github.com/querylens/querylens/internal/embedding"
	"github.com/querylens/querylens/internal/history"
	"github.com/querylens/querylens/internal/index"
	"github.com/querylens/querylens/internal/indexer"
	"github.com/querylens/querylens/internal/nl2sql"
	"github.com/querylens/querylens/internal/pipeline"
	"github.com/querylens/querylens/internal/query"
	"github.com/querylens/querylens/internal/query/sqldb"
	"github.com/querylens/querylens/internal/retrieval"
	"github.com/querylens/querylens/internal/schema"
	"github.com/querylens/querylens/internal/storage"
	"github.com/querylens/querylens/internal/storage/memory"
	s3store "github.com/querylens/querylens/internal/storage/s3"
	"github.com/querylens/querylens/internal/vectorstore"
	vectormemory "github.com/querylens/querylens/internal/vectorstore/memory"
	vectorpostgres "github.com/querylens/querylens/internal/vectorstore/postgres"
)

// Overrides replaces components that would otherwise be built from config.
type Overrides struct {
	DB          *sql.DB
	VectorStore vectorstore.Store
	Generator   nl2sql.Generator
	ObjectStore storage.ObjectStore
}

type App struct {
	Config      config.Config
	Logger      *slog.Logger
	DB          *sql.DB
	Extractor   *schema.Extractor
	Embedder    embedding.Embedder
	VectorStore vectorstore.Store
	ObjectStore storage.ObjectStore
	Archive     *archive.Archive
	Corpus      retrieval.CorpusSource
	Retriever   retrieval.ContextRetriever
	Generator   nl2sql.Generator
	Engine      query.Engine
	History     *history.Store
	Pipeline    *pipeline.Pipeline
	Indexer     *indexer.Service

	closers []func() error
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, overrides Overrides) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.build(ctx, overrides); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, overrides Overrides) error {
	cfg := a.Config
	dialect := cfg.Database.Dialect()

	a.DB = overrides.DB
	if a.DB == nil {
		db, err := database.Open(ctx, database.DBConfig{
			Driver:          cfg.Database.Driver,
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)
	}

	introspector, err := schema.NewIntrospector(a.DB, dialect)
	if err != nil {
		return err
	}
	a.Extractor = schema.NewExtractor(introspector, schema.ExtractorConfig{
		SampleRows:  cfg.Database.SampleRows,
		MaxAttempts: cfg.Database.ExtractionAttempts,
	}, a.Logger)

	a.Embedder, err = embedding.New(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("initialize embedder: %w", err)
	}

	if err := a.buildVectorStore(ctx, overrides.VectorStore); err != nil {
		return err
	}
	if err := a.buildArchive(ctx, overrides.ObjectStore); err != nil {
		return err
	}

	a.Corpus = retrieval.ChainCorpus{
		retrieval.StoreCorpus{Store: a.VectorStore},
		a.Archive,
		retrieval.ExtractorCorpus{Extractor: a.Extractor},
	}
	a.Retriever, err = retrieval.New(cfg.Retrieval.Strategy, retrieval.Dependencies{
		Embedder: a.Embedder,
		Store:    a.VectorStore,
		Corpus:   a.Corpus,
		MinScore: cfg.Retrieval.MinScore,
		Logger:   a.Logger,
	})
	if err != nil {
		return fmt.Errorf("initialize retriever: %w", err)
	}

	a.Generator = overrides.Generator
	if a.Generator == nil {
		client, err := nl2sql.New(cfg.Generation, a.Logger)
		if err != nil {
			return fmt.Errorf("initialize generator: %w", err)
		}
		a.Generator = client
	}

	a.Engine = sqldb.NewEngine(a.DB, sqldb.Options{
		Timeout: cfg.Database.QueryTimeout,
		MaxRows: cfg.Database.MaxResultRows,
	})
	a.History = history.NewStore(history.DefaultCapacity)
	a.Pipeline = pipeline.New(pipeline.Dependencies{
		Retriever: a.Retriever,
		Generator: a.Generator,
		Engine:    a.Engine,
		History:   a.History,
		Dialect:   dialect,
		TopK:      cfg.Retrieval.TopK,
		RowLimit:  cfg.Database.MaxResultRows,
		Logger:    a.Logger,
	})

	a.Indexer = &indexer.Service{
		Extractor: a.Extractor,
		Writer:    index.NewWriter(a.VectorStore, a.Embedder, index.WriterConfig{}, a.Logger),
		Verifier:  index.NewVerifier(a.Extractor, a.VectorStore, a.Embedder.ID()),
		Archive:   a.Archive,
		Config: indexer.Config{
			RefreshInterval: cfg.Indexer.RefreshInterval,
			VerifyInterval:  cfg.Indexer.VerifyInterval,
			RebuildOnStart:  cfg.Indexer.RebuildOnStart,
			CreatedBy:       cfg.Indexer.CreatedBy,
		},
		Logger: a.Logger,
	}
	return nil
}

func (a *App) buildVectorStore(ctx context.Context, override vectorstore.Store) error {
	if override != nil {
		a.VectorStore = override
		return nil
	}
	cfg := a.Config.VectorStore
	switch cfg.Backend {
	case "pgvector":
		db, err := database.Open(ctx, database.DBConfig{
			Driver:          "pgx",
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("open vector store db: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		store, err := vectorpostgres.NewStore(db, cfg.Table)
		if err != nil {
			return fmt.Errorf("initialize vector store: %w", err)
		}
		a.VectorStore = store
	default:
		a.VectorStore = vectormemory.New()
	}
	return nil
}

// buildArchive keeps snapshots in S3-compatible storage when enabled and in
// process memory otherwise.
func (a *App) buildArchive(ctx context.Context, override storage.ObjectStore) error {
	a.ObjectStore = override
	if a.ObjectStore == nil {
		if a.Config.Archive.Enabled {
			store, err := s3store.New(ctx, s3store.ConfigFromArchive(a.Config.Archive))
			if err != nil {
				return fmt.Errorf("initialize archive store: %w", err)
			}
			a.ObjectStore = store
		} else {
			a.ObjectStore = memory.NewStore()
		}
	}
	a.Archive = archive.New(a.ObjectStore, archive.Options{Logger: a.Logger})
	return nil
}

// Probes reports reachability of the database, vector store and generator.
func (a *App) Probes() []api.HealthProbe {
	probes := []api.HealthProbe{
		{Name: "database", Check: database.Checker(a.DB)},
		{Name: "vector_store", Check: a.VectorStore.HealthCheck},
		{Name: "generator", Check: a.Generator.HealthCheck},
	}
	if checker, ok := a.ObjectStore.(interface {
		HealthCheck(ctx context.Context) error
	}); ok && a.Config.Archive.Enabled {
		probes = append(probes, api.HealthProbe{Name: "archive", Check: checker.HealthCheck})
	}
	return probes
}

func (a *App) Readiness() api.ReadinessCheck {
	return api.CombineReadinessChecks(database.Checker(a.DB))
}

func (a *App) APIDependencies() api.Dependencies {
	return api.Dependencies{
		Logger:      a.Logger,
		Readiness:   a.Readiness(),
		Probes:      a.Probes(),
		Pipeline:    a.Pipeline,
		Retriever:   a.Retriever,
		Corpus:      a.Corpus,
		History:     a.History,
		Indexer:     a.Indexer,
		DefaultTopK: a.Config.Retrieval.TopK,
	}
}

func (a *App) Close() error {
	var result *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	a.closers = nil
	return result.ErrorOrNil()
}
