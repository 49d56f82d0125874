package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	configfile "github.com/custodia-labs/vectra-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/vectra-cli/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/vectra-cli/internal/adapters/driven/events"
	"github.com/custodia-labs/vectra-cli/internal/adapters/driven/rerank"
	retrybolt "github.com/custodia-labs/vectra-cli/internal/adapters/driven/retryqueue/bolt"
	"github.com/custodia-labs/vectra-cli/internal/adapters/driven/storage/sqlite"
	vectormem "github.com/custodia-labs/vectra-cli/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/vectra-cli/internal/adapters/driven/vectorstore/qdrant"
	"github.com/custodia-labs/vectra-cli/internal/adapters/driven/vectorstore/sqlitevec"
	"github.com/custodia-labs/vectra-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
	"github.com/custodia-labs/vectra-cli/internal/core/services"
	"github.com/custodia-labs/vectra-cli/internal/logger"
	"github.com/custodia-labs/vectra-cli/internal/normalisers"
	"github.com/custodia-labs/vectra-cli/internal/normalisers/markdown"
	"github.com/custodia-labs/vectra-cli/internal/normalisers/pdf"
	"github.com/custodia-labs/vectra-cli/internal/normalisers/plaintext"
)

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file in the working directory supplies API keys during
	// development. Absence is not an error.
	_ = godotenv.Load()

	dataDir, err := resolveDataDir()
	if err != nil {
		return fmt.Errorf("resolve data directory: %w", err)
	}

	cfg, err := configfile.NewConfigStore(dataDir)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	defer store.Close()

	retries, err := retrybolt.NewQueue(dataDir)
	if err != nil {
		return fmt.Errorf("open retry queue: %w", err)
	}
	defer retries.Close()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	if embedder != nil {
		defer embedder.Close()
	}

	dimension := cfg.GetInt(configfile.KeyEmbeddingDimensions)
	modelID := cfg.GetString(configfile.KeyEmbeddingModel)
	if embedder != nil {
		dimension = embedder.Dimensions()
		modelID = embedder.ModelName()
	}
	if dimension <= 0 {
		dimension = 1536
	}

	primary, err := buildVectorStore(cfg, backendName(cfg, configfile.KeyPrimaryBackend, "sqlitevec"), dataDir, modelID, dimension)
	if err != nil {
		return fmt.Errorf("open primary backend: %w", err)
	}
	var secondary driven.VectorStore
	if name := cfg.GetString(configfile.KeySecondaryBackend); name != "" {
		secondary, err = buildVectorStore(cfg, name, dataDir, modelID, dimension)
		if err != nil {
			return fmt.Errorf("open secondary backend: %w", err)
		}
	}

	router := services.NewWriteRouter(primary, secondary, store.MigrationStore(), retries)
	sink := events.NewLogSink()

	svcs := &cli.Services{
		Documents: store.DocumentStore(),
		Config:    cfg,
	}

	// Everything past this point needs embeddings. Without an API key
	// the commands report themselves unconfigured instead of failing
	// at startup.
	if embedder != nil {
		svcs.Ingest = services.NewIngestService(store.DocumentStore(), embedder, router, buildNormalisers(), nil, sink)
		svcs.Query = services.NewRetrievalService(embedder, router, buildReranker(), cfg)

		orch := services.NewMigrationOrchestrator(
			store.MigrationStore(),
			store.DocumentStore(),
			primary,
			secondary,
			embedder,
			router,
			migrationOptions(cfg),
		)
		if secondary != nil {
			secondaryName := secondary.Name()
			orch.SetDecommissionHook(func() {
				if err := cfg.Set(configfile.KeyPrimaryBackend, secondaryName); err != nil {
					logger.Warn("Failed to repoint primary backend: %v", err)
					return
				}
				if err := cfg.Set(configfile.KeySecondaryBackend, ""); err != nil {
					logger.Warn("Failed to clear secondary backend: %v", err)
				}
			})
		}
		svcs.Migration = orch
	}

	cli.SetServices(svcs)
	cli.SetVersion(version)
	return cli.Execute()
}

// resolveDataDir picks the vectra home directory. VECTRA_HOME
// overrides the default ~/.vectra.
func resolveDataDir() (string, error) {
	if dir := os.Getenv("VECTRA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".vectra"), nil
}

// buildEmbedder creates the embedding gateway, or returns nil when no
// API key is configured.
func buildEmbedder(cfg driven.ConfigStore) (*openai.EmbeddingService, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, nil
	}
	return openai.NewEmbeddingService(openai.Config{
		APIKey:     apiKey,
		BaseURL:    os.Getenv("OPENAI_BASE_URL"),
		Model:      cfg.GetString(configfile.KeyEmbeddingModel),
		Dimensions: cfg.GetInt(configfile.KeyEmbeddingDimensions),
	})
}

// buildVectorStore constructs a backend by its configured name.
func buildVectorStore(cfg driven.ConfigStore, name, dataDir, modelID string, dimension int) (driven.VectorStore, error) {
	switch name {
	case "sqlitevec":
		return sqlitevec.NewStore(dataDir, modelID, dimension)
	case "qdrant":
		url := cfg.GetString(configfile.KeyQdrantURL)
		if url == "" {
			return nil, fmt.Errorf("backend %q requires %s", name, configfile.KeyQdrantURL)
		}
		collection := cfg.GetString(configfile.KeyQdrantCollection)
		if collection == "" {
			collection = "vectra"
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return qdrant.NewStore(ctx, qdrant.Config{
			URL:        url,
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			Collection: collection,
			Dimension:  dimension,
			ModelID:    modelID,
		})
	case "memory":
		return vectormem.NewStore(dimension), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", name)
	}
}

// buildNormalisers assembles the text extraction registry. PDF
// support depends on pdftotext being installed.
func buildNormalisers() driven.NormaliserRegistry {
	reg := normalisers.NewRegistry()
	reg.Register(plaintext.New())
	reg.Register(markdown.New())
	if err := pdf.CheckAvailable(); err != nil {
		logger.Debug("PDF ingestion disabled: %v", err)
	} else {
		reg.Register(pdf.New())
	}
	return reg
}

// buildReranker prefers the hosted cross-encoder when a key is
// present, falling back to the local lexical pass.
func buildReranker() driven.Reranker {
	if apiKey := os.Getenv("COHERE_API_KEY"); apiKey != "" {
		encoder, err := rerank.NewCrossEncoder(rerank.CrossEncoderConfig{APIKey: apiKey})
		if err == nil {
			return encoder
		}
		logger.Warn("Cross-encoder unavailable, using lexical reranker: %v", err)
	}
	return rerank.NewLexical()
}

func backendName(cfg driven.ConfigStore, key, fallback string) string {
	if name := cfg.GetString(key); name != "" {
		return name
	}
	return fallback
}

func migrationOptions(cfg driven.ConfigStore) services.MigrationOptions {
	return services.MigrationOptions{
		ScoreEpsilon:  cfg.GetFloat(configfile.KeyScoreEpsilon),
		VerifySamples: cfg.GetInt(configfile.KeyVerifySamples),
		GraceWindow:   time.Duration(cfg.GetInt(configfile.KeyGraceHours)) * time.Hour,
		BackfillBatch: cfg.GetInt(configfile.KeyBackfillBatch),
	}
}
