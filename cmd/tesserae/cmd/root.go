// Package cmd provides the CLI commands for tesserae.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tesserae-go/tesserae/internal/async"
	"github.com/tesserae-go/tesserae/internal/bigram"
	"github.com/tesserae-go/tesserae/internal/config"
	"github.com/tesserae-go/tesserae/internal/feature"
	"github.com/tesserae-go/tesserae/internal/freq"
	"github.com/tesserae-go/tesserae/internal/ingest"
	"github.com/tesserae-go/tesserae/internal/search"
	"github.com/tesserae-go/tesserae/internal/store"
	"github.com/tesserae-go/tesserae/internal/unit"
	"github.com/tesserae-go/tesserae/pkg/version"
)

// tokenizerTimeout bounds a single ingest tokenize call to the external
// normalizer service (spec.md §9 Open Question (a)).
const tokenizerTimeout = 2 * time.Minute

var dataDir string

// NewRootCmd creates the root command for the tesserae CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tesserae",
		Short: "Intertext search engine for classical literature",
		Long: `tesserae ingests tagged texts, builds their unit index and shared-feature
bigram store, and runs allusion searches between a source and target text.

It runs entirely locally against a SQLite metadata store and an on-disk
bigram store, and calls out to an external tokenizer/lemmatizer service
for language-specific normalization.`,
		Version: version.Version,
	}
	cmd.SetVersionTemplate("tesserae version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Override the configured data directory")

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newMultitextCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newGCCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// engine wires together every collaborator a CLI subcommand needs:
// the metadata store, Unit Index, Feature Registry, Frequency Service,
// Bigram Store, Search Lifecycle, and Ingest Pipeline (spec.md §4.9,
// §4.2). Every subcommand opens one, uses it, and closes it before
// returning — there is no long-lived daemon process (spec.md §1
// Non-goals: "a server process").
type engine struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	bigrams  *bigram.Store
	lc       *search.Lifecycle
	pipeline *ingest.Pipeline
	searches *async.Pool
	ingests  *async.Pool
}

func newEngine() (*engine, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dataDir != "" {
		cfg.Paths.DataDir = dataDir
		cfg.Paths.SQLitePath = filepath.Join(dataDir, "tesserae.db")
		cfg.Paths.BigramStorePath = filepath.Join(dataDir, "bigrams")
	}
	if err := os.MkdirAll(cfg.Paths.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Paths.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	bigrams, err := bigram.Open(cfg.Paths.BigramStorePath)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to open bigram store: %w", err)
	}

	units := unit.New(s)
	registry := feature.New(s)
	freqSvc := freq.New(s)
	lc := search.New(s, units, registry, freqSvc, bigrams)

	tokenizer := ingest.NewHTTPTokenizer(ingest.HTTPTokenizerConfig{
		Endpoint: cfg.Ingest.TokenizerEndpoint,
		Timeout:  tokenizerTimeout,
	})
	pipeline := ingest.New(s, units, registry, bigrams, tokenizer)

	return &engine{
		cfg:      cfg,
		store:    s,
		bigrams:  bigrams,
		lc:       lc,
		pipeline: pipeline,
		searches: async.NewPool(cfg.Search.Workers, cfg.Search.Workers*4),
		ingests:  async.NewPool(cfg.Ingest.Workers, cfg.Ingest.QueueSize),
	}, nil
}

func (e *engine) Close() {
	e.searches.Shutdown()
	e.ingests.Shutdown()
	_ = e.bigrams.Close()
	_ = e.store.Close()
}

// withEngine opens an engine, runs fn, and closes the engine regardless
// of fn's outcome.
func withEngine(fn func(*engine) error) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(e)
}
