// Package main implements gofriqd, the gofr-iq tool-call server process.
//
// It wires the full service stack (docstore, graphindex, vectorindex,
// sourceregistry, alias resolver, llmclient, group service) behind
// internal/toolsurface and serves it over HTTP. Grounded on the
// teacher's cmd/nerd/main.go cobra bootstrap: a persistent zap logger
// built in PersistentPreRunE, package-level flag vars, synced in
// PersistentPostRun.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gofr-iq/gofr-iq/internal/alias"
	"github.com/gofr-iq/gofr-iq/internal/clientsvc"
	"github.com/gofr-iq/gofr-iq/internal/config"
	"github.com/gofr-iq/gofr-iq/internal/docstore"
	"github.com/gofr-iq/gofr-iq/internal/feed"
	"github.com/gofr-iq/gofr-iq/internal/graphindex"
	"github.com/gofr-iq/gofr-iq/internal/group"
	"github.com/gofr-iq/gofr-iq/internal/ingest"
	"github.com/gofr-iq/gofr-iq/internal/llmclient"
	"github.com/gofr-iq/gofr-iq/internal/obslog"
	"github.com/gofr-iq/gofr-iq/internal/query"
	"github.com/gofr-iq/gofr-iq/internal/sourceregistry"
	"github.com/gofr-iq/gofr-iq/internal/toolsurface"
	"github.com/gofr-iq/gofr-iq/internal/vectorindex"
)

var (
	configPath string
	logger     *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "gofriqd",
	Short: "gofr-iq tool-call server",
	Long: `gofriqd serves the gofr-iq knowledge-graph and document pipeline
over a single ToolSurface HTTP endpoint: ingest, query, client/portfolio
management, graph exploration, and market context, each resolved against
the caller's auth_tokens.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		l, err := obslog.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file (defaults applied when absent)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runServe builds the full service stack and serves it over HTTP until
// the process is killed. Grounded on the teacher's nerd init sequence
// (config → storage → reasoning services → command surface), reshaped
// around a long-lived listener instead of a one-shot CLI invocation.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	graph, err := graphindex.Open(cfg.Graph.DBPath)
	if err != nil {
		return fmt.Errorf("open graph index: %w", err)
	}
	defer graph.Close()

	// SeedTaxonomy merges the built-in region/sector/event-type/macro-factor reference
	// data; it is idempotent (unique-constrained upserts), so running it
	// unconditionally on every startup is safe even across restarts.
	if err := graph.SeedTaxonomy(); err != nil {
		return fmt.Errorf("seed taxonomy: %w", err)
	}

	if configPath != "" {
		watcher, werr := config.NewWatcher(configPath, func(reloaded *config.Config) {
			// Ranking/feed weights live on Config; callers supply their own
			// per-request weights through toolsurface, and query.Weights
			// falls back to its own package default when theirs is unset,
			// so a reload here is observability (confirms the file the
			// operator edited actually re-parsed and validated) rather
			// than a live in-place swap of already-running services.
			logger.Infow("config file changed and reloaded", "storage_dir", reloaded.Storage.Dir)
		}, logger)
		if werr != nil {
			logger.Warnw("config watcher unavailable, edits to the config file require a restart", "path", configPath, "error", werr)
		} else {
			watcher.Start(cmd.Context())
			defer watcher.Stop()
		}
	}

	store := docstore.New(cfg.Storage.Dir)
	sources := sourceregistry.New(cfg.Storage.Dir, graph)

	vector, err := vectorindex.Open(cfg.Vector.DBPath, vectorindex.ChunkParams{
		ChunkSize:    cfg.Vector.ChunkSize,
		ChunkOverlap: cfg.Vector.ChunkOverlap,
		MinChunkSize: cfg.Vector.MinChunkSize,
	})
	if err != nil {
		return fmt.Errorf("open vector index: %w", err)
	}
	defer vector.Close()

	audit, err := obslog.NewAuditService(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("init audit service: %w", err)
	}

	aliases := alias.New(graph, 4096)

	var llm *llmclient.Client
	if cfg.LLM.APIKey != "" {
		timeout, perr := time.ParseDuration(cfg.LLM.Timeout)
		if perr != nil {
			timeout = 60 * time.Second
		}
		llm = llmclient.New(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.EmbeddingModel, timeout, logger)
	}

	groups := group.New(graph, cfg.Auth.JWTSecret)
	clients := clientsvc.New(graph)

	// ingest/query both degrade gracefully when llm is nil: extraction
	// is skipped (documents keep no extraction-derived fields) and
	// embedding is skipped, matching
	// the teacher's "LLM is an enrichment, not a dependency" posture.
	var ingestEmbedder ingest.ChatEmbedder
	var queryEmbedder query.Embedder
	if llm != nil {
		ingestEmbedder = llm
		queryEmbedder = llm
	}

	ingestSvc := ingest.New(store, sources, graph, vector, aliases, ingestEmbedder, audit, logger, cfg.Vector.SimilarityThreshold)
	querySvc := query.New(vector, graph, store, sources, queryEmbedder)
	feedSvc := feed.New(graph, store, vector, clients)

	var pinger toolsurface.Pinger
	if llm != nil {
		pinger = llm
	}

	surface := toolsurface.New(ingestSvc, sources, querySvc, feedSvc, clients, groups, graph, store, vector, pinger, audit, logger)

	logger.Infow("gofriqd starting", "addr", cfg.Server.Addr, "storage_dir", cfg.Storage.Dir)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      surface.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return srv.ListenAndServe()
}
