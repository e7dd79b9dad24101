package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/s22625/fuzzmon/internal/bus"
	"github.com/s22625/fuzzmon/internal/campaign"
	"github.com/s22625/fuzzmon/internal/config"
	"github.com/s22625/fuzzmon/internal/corpus"
	"github.com/s22625/fuzzmon/internal/engine"
	"github.com/s22625/fuzzmon/internal/env"
	"github.com/s22625/fuzzmon/internal/pool"
	"github.com/s22625/fuzzmon/internal/report"
	"github.com/s22625/fuzzmon/internal/stream"
	"github.com/s22625/fuzzmon/internal/ui"
)

// drainTimeout bounds the bus drain during interactive shutdown.
const drainTimeout = 10 * time.Second

type runOptions struct {
	workers     int
	fuzzWorkers int
	testLimit   int
	timeout     int
	port        int
	seed        int64
	contract    string
	corpusDir   string
	format      string
	headless    bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a fuzzing campaign",
		Long: `Run starts the configured worker pool and drives it until the test
budget or the time limit is exhausted, or until interrupted.

With a terminal attached it shows the interactive dashboard; otherwise
it prints periodic status lines and a final report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg, opts); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return runCampaign(cmd.Context(), cfg, opts.headless)
		},
	}

	addRunFlags(cmd, opts)
	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Total worker count (fuzz + symbolic)")
	cmd.Flags().IntVar(&opts.fuzzWorkers, "fuzz-workers", 0, "Fuzzing worker count")
	cmd.Flags().IntVar(&opts.testLimit, "test-limit", 0, "Total test call budget (0 = unlimited)")
	cmd.Flags().IntVar(&opts.timeout, "timeout", 0, "Campaign time limit in seconds (0 = none)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "TCP port for the NDJSON event stream (0 = off)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Campaign seed")
	cmd.Flags().StringVar(&opts.contract, "contract", "", "Target contract (empty = all)")
	cmd.Flags().StringVar(&opts.corpusDir, "corpus", "", "Corpus directory")
	cmd.Flags().StringVar(&opts.format, "format", "", "Final report format (text|json|none)")
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "Disable the dashboard even on a terminal")
}

// applyRunFlags overrides config fields with explicitly set flags only,
// so file and env settings survive an untouched flag.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, opts *runOptions) error {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("fuzz-workers") {
		cfg.FuzzWorkers = opts.fuzzWorkers
	}
	if flags.Changed("test-limit") {
		cfg.TestLimit = opts.testLimit
	}
	if flags.Changed("timeout") {
		cfg.TimeoutSeconds = opts.timeout
	}
	if flags.Changed("port") {
		cfg.Port = opts.port
	}
	if flags.Changed("seed") {
		cfg.Seed = opts.seed
	}
	if flags.Changed("contract") {
		cfg.Contract = opts.contract
	}
	if flags.Changed("corpus") {
		cfg.CorpusDir = opts.corpusDir
	}
	if flags.Changed("format") {
		format, err := config.ParseOutputFormat(opts.format)
		if err != nil {
			return err
		}
		cfg.Format = format
	}
	return nil
}

func runCampaign(ctx context.Context, cfg *config.Config, headless bool) error {
	entries, err := corpus.Load(cfg.CorpusDir)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}

	exec := &engine.ExecContext{Seed: cfg.Seed}
	if cfg.Contract != "" {
		exec.Contracts = []string{cfg.Contract}
	} else {
		exec.Contracts = []string{"Target"}
	}
	sh := env.New(cfg, exec, &engine.Dictionary{})

	// Record the deployed targets so the cache inspection dialog has data.
	caches := env.FetchCaches{Contracts: make(map[string]string), Slots: make(map[string]string)}
	for i, name := range exec.Contracts {
		caches.Contracts[fmt.Sprintf("0x%040x", i+1)] = name
	}
	sh.UpdateCaches(caches)

	b := bus.New()
	sup := pool.New(sh, engine.NewRandom(), b)
	assignments := pool.Assignments(entries, sh)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if headless || !isatty.IsTerminal(os.Stdout.Fd()) {
		logger := log.New(os.Stderr, "", log.LstdFlags)
		r := report.New(sh, b, os.Stdout, logger)
		return r.Run(ctx, sup, assignments)
	}
	return runInteractive(ctx, sh, b, sup, assignments)
}

// runInteractive drives the dashboard campaign. Natural completion and
// user quit drain the bus and wait for the stream flush; a signal force
// stops without the flush wait.
func runInteractive(ctx context.Context, sh *env.SharedEnv, b *bus.Bus, sup *pool.Supervisor, assignments []pool.Assignment) error {
	// The dashboard owns the terminal; daemon-style logs go nowhere.
	logger := log.New(io.Discard, "", 0)

	samplerCtx, stopSampler := context.WithCancel(ctx)
	defer stopSampler()

	m := ui.New(samplerCtx, sh)
	m.Listen(b)

	cov := &covTracker{}
	b.Register("coverage", cov.consume)

	var br *stream.Broadcaster
	if sh.Cfg.Port != 0 {
		var err error
		br, err = stream.Start(b, sh.Cfg.Port, sh.Cfg.Workers, logger)
		if err != nil {
			return fmt.Errorf("start event stream: %w", err)
		}
	}

	sup.Start(assignments)

	uiErr := m.Run(ctx)
	forced := ctx.Err() != nil

	sup.Stop()
	stopSampler()
	b.Close()

	if forced && br != nil {
		br.Finish(false)
	}
	if err := b.Drain(drainTimeout); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if !forced && br != nil {
		br.Finish(true)
		<-br.Flushed()
	}

	rep := report.Build(sh, cov.snapshot(), time.Now())
	switch sh.Cfg.Format {
	case config.FormatJSON:
		if err := report.WriteJSON(os.Stdout, rep); err != nil {
			return err
		}
	case config.FormatText:
		if err := report.WriteText(os.Stdout, rep); err != nil {
			return err
		}
	}
	return uiErr
}

// covTracker folds coverage events outside the dashboard's lifetime, so
// events delivered during the final drain still count. Point and
// codehash counters only move forward; corpus size tracks the latest
// report.
type covTracker struct {
	mu  sync.Mutex
	cov campaign.Coverage
}

func (t *covTracker) consume(ev campaign.Event) {
	if ev.Kind != campaign.EventNewCoverage || ev.Coverage == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if ev.Coverage.Points > t.cov.Points {
		t.cov.Points = ev.Coverage.Points
	}
	if ev.Coverage.Codehashes > t.cov.Codehashes {
		t.cov.Codehashes = ev.Coverage.Codehashes
	}
	t.cov.CorpusSize = ev.Coverage.CorpusSize
}

func (t *covTracker) snapshot() campaign.Coverage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cov
}
