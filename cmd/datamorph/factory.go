package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/datamorph-ai/datamorph/internal/ai"
	"github.com/datamorph-ai/datamorph/internal/artifact"
	"github.com/datamorph-ai/datamorph/internal/audit"
	"github.com/datamorph-ai/datamorph/internal/config"
	"github.com/datamorph-ai/datamorph/internal/engine"
	"github.com/datamorph-ai/datamorph/internal/remediation"
	"github.com/datamorph-ai/datamorph/internal/retry"
	"github.com/datamorph-ai/datamorph/internal/validation"
	"github.com/datamorph-ai/datamorph/internal/workflow"
)

// runtime bundles the wired collaborators behind the CLI commands.
type runtime struct {
	coordinator *workflow.Coordinator
	audit       *audit.Log
	close       func()
}

// buildRuntime wires every collaborator from configuration: the Claude
// client, the Postgres engine, the artifact store, the audit trail and
// the coordinator on top of them.
func buildRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	client, err := ai.NewClient(ai.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        cfg.Anthropic.APIKey,
		UseBedrock:    cfg.Anthropic.UseBedrock,
		BedrockRegion: cfg.Anthropic.BedrockRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
		MaxTokens:     int64(cfg.Anthropic.MaxTokens),
		Retry: retry.Config{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating AI client: %w", err)
	}

	db, err := engine.Open(ctx, engine.Config{
		DSN:          cfg.Database.DSN,
		PingTimeout:  cfg.Database.PingTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	auditPath := cfg.Audit.Path
	if auditPath == "" {
		auditPath = audit.DefaultDBPath()
	}
	auditLog, err := audit.Open(auditPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening audit trail: %w", err)
	}

	sqlEngine := engine.NewSQLEngine(db)
	controller := remediation.NewController(client, sqlEngine, store, auditLog, cfg.Workflow.MaxIterations)

	coordinator := workflow.NewCoordinator(
		client,
		client,
		engine.NewIntrospector(db, cfg.Database.SampleRows),
		sqlEngine,
		engine.NewQueries(db),
		ai.NewOracle(client),
		store,
		controller,
		auditLog,
		workflow.Config{
			MaxIterations:   cfg.Workflow.MaxIterations,
			AIPassThreshold: cfg.Workflow.AIPassThreshold,
			Suite: validation.SuiteConfig{
				AITestCap:        cfg.Workflow.AITestCap,
				NumericTolerance: cfg.Workflow.NumericTolerance,
			},
		},
	)

	return &runtime{
		coordinator: coordinator,
		audit:       auditLog,
		close: func() {
			if err := auditLog.Close(); err != nil {
				log.Printf("[cli] closing audit trail: %v", err)
			}
			if err := db.Close(); err != nil {
				log.Printf("[cli] closing database: %v", err)
			}
		},
	}, nil
}

// buildStore selects the artifact backend from configuration.
func buildStore(ctx context.Context, cfg *config.Config) (artifact.Store, error) {
	switch cfg.Artifacts.Backend {
	case "s3":
		store, err := artifact.NewObjectStore(ctx, artifact.ObjectStoreConfig{
			Endpoint:  cfg.Artifacts.Endpoint,
			AccessKey: cfg.Artifacts.AccessKey,
			SecretKey: cfg.Artifacts.SecretKey,
			Bucket:    cfg.Artifacts.Bucket,
			UseSSL:    cfg.Artifacts.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("creating object store: %w", err)
		}
		return store, nil
	case "local", "":
		dir := cfg.Artifacts.Dir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				dir = filepath.Join(".", ".datamorph", "artifacts")
			} else {
				dir = filepath.Join(home, ".local", "share", "datamorph", "artifacts")
			}
		}
		store, err := artifact.NewLocalStore(dir)
		if err != nil {
			return nil, fmt.Errorf("creating local artifact store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Artifacts.Backend)
	}
}
