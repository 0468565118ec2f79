// Command ingest loads call detail record spreadsheets and writes them
// into the Neo4j graph: one-shot on a single file, watching a drop
// directory, or consuming batch requests over NATS.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/sigintlabs/cdrgraph/engine/domain"
	"github.com/sigintlabs/cdrgraph/engine/graph"
	"github.com/sigintlabs/cdrgraph/engine/ingest"
	"github.com/sigintlabs/cdrgraph/engine/source"
	"github.com/sigintlabs/cdrgraph/pkg/fn"
	"github.com/sigintlabs/cdrgraph/pkg/metrics"
	"github.com/sigintlabs/cdrgraph/pkg/resilience"
)

var met = metrics.New()

var (
	mRowsProcessed = met.Counter("cdrgraph_ingest_rows_processed_total", "Rows written to the graph")
	mRowsSkipped   = func(reason string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("cdrgraph_ingest_rows_skipped_total", "reason", reason), "Rows skipped during ingest")
	}
	mBatches     = met.Counter("cdrgraph_ingest_batches_total", "Batches ingested")
	mBatchDur    = met.Histogram("cdrgraph_ingest_batch_duration_seconds", "Per-batch ingest time", nil)
	mActiveBatch = met.Gauge("cdrgraph_ingest_active_batches", "Batches currently ingesting")
	mFilesSeen   = met.Counter("cdrgraph_ingest_files_processed_total", "Spreadsheets processed in watch mode")
	mLastScan    = met.Gauge("cdrgraph_ingest_last_scan_timestamp", "Epoch of last directory scan")
)

func main() {
	var (
		file       = flag.String("file", "", "spreadsheet to ingest (.xlsx, .xlsm or .csv)")
		setID      = flag.String("set", "", "existing listing set id to ingest into")
		setName    = flag.String("set-name", "", "create a new listing set with this name")
		setOwner   = flag.String("owner", envOr("CDRGRAPH_OWNER", "analyst"), "listing set owner username")
		neo4jURL   = flag.String("neo4j", envOr("NEO4J_URL", "neo4j://localhost:7687"), "Neo4j bolt URL")
		neo4jUser  = flag.String("neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
		neo4jPass  = flag.String("neo4j-pass", envOr("NEO4J_PASS", ""), "Neo4j password")
		natsURL    = flag.String("nats", "", "run as a NATS consumer on this URL instead of one-shot mode")
		watchDir   = flag.String("watch", "", "watch this directory for spreadsheets instead of one-shot mode")
		interval   = flag.Duration("interval", 30*time.Second, "scan interval in watch mode")
		stateFile  = flag.String("state", "", "processed files state (default <watch dir>/.ingest-state.json)")
		prefix     = flag.String("country-prefix", domain.DefaultCountryPrefix, "country prefix stripped from phone numbers")
		metricPort = flag.Int("metrics-port", 9091, "Prometheus metrics port")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	met.ServeAsync(*metricPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := options{
		file:     *file,
		setID:    *setID,
		setName:  *setName,
		setOwner: *setOwner,
		natsURL:  *natsURL,
		watchDir: *watchDir,
		interval: *interval,
		state:    *stateFile,
		prefix:   *prefix,
	}
	if err := run(ctx, opts, *neo4jURL, *neo4jUser, *neo4jPass, log); err != nil {
		log.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	file     string
	setID    string
	setName  string
	setOwner string
	natsURL  string
	watchDir string
	interval time.Duration
	state    string
	prefix   string
}

func run(ctx context.Context, opts options, neo4jURL, neo4jUser, neo4jPass string, log *slog.Logger) error {
	driver, err := neo4j.NewDriverWithContext(neo4jURL, neo4j.BasicAuth(neo4jUser, neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j connect: %w", err)
	}
	defer driver.Close(ctx)

	store := graph.NewStore(driver)
	verify := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[struct{}] {
		if err := store.VerifyConnectivity(ctx); err != nil {
			log.Warn("neo4j not reachable yet", "error", err)
			return fn.Err[struct{}](err)
		}
		return fn.Ok(struct{}{})
	})
	if verify.IsErr() {
		_, err := verify.Unwrap()
		return fmt.Errorf("neo4j verify: %w", err)
	}
	log.Info("connected to Neo4j", "url", neo4jURL)

	cfg := domain.DefaultFieldConfig()
	cfg.CountryPrefix = opts.prefix

	deps := ingest.Deps{
		Writer:  graph.NewWriter(store),
		Config:  cfg,
		Breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		Logger:  log,
	}

	switch {
	case opts.natsURL != "":
		return serveNATS(ctx, opts.natsURL, store, deps, log)
	case opts.watchDir != "":
		return watch(ctx, opts, store, deps, log)
	default:
		return runBatch(ctx, opts.file, opts.setID, opts.setName, opts.setOwner, store, deps, log)
	}
}

// runBatch ingests a single spreadsheet and exits.
func runBatch(ctx context.Context, file, setID, setName, setOwner string, store *graph.Store, deps ingest.Deps, log *slog.Logger) error {
	if file == "" {
		return errors.New("-file is required in one-shot mode")
	}

	sets := graph.NewListingSets(store)
	id, err := resolveListingSet(ctx, sets, setID, setName, setOwner)
	if err != nil {
		return err
	}

	rows, err := source.LoadFile(file)
	if err != nil {
		return fmt.Errorf("load %s: %w", file, err)
	}
	log.Info("loaded source file", "file", file, "rows", len(rows))

	mActiveBatch.Inc()
	start := time.Now()
	summary := ingest.Ingest(ctx, deps, rows, id)
	mBatchDur.Since(start)
	mActiveBatch.Dec()

	recordSummary(summary)
	log.Info("ingest complete",
		"listing_set", summary.ListingSetID,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"elapsed", summary.Elapsed,
	)
	for _, re := range summary.Errors {
		log.Warn("row skipped", "row", re.Row, "reason", re.Reason)
	}
	return nil
}

// serveNATS blocks consuming batch requests until the context is cancelled.
func serveNATS(ctx context.Context, url string, store *graph.Store, deps ingest.Deps, log *slog.Logger) error {
	nc, err := nats.Connect(url)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	cdeps := ingest.ConsumerDeps{
		Deps:    deps,
		Ping:    store.VerifyConnectivity,
		Limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: 5, Burst: 10}),
	}
	sub, err := ingest.StartConsumer(nc, cdeps)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer sub.Unsubscribe()

	log.Info("consuming batches", "subject", ingest.IngestSubject, "url", url)
	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

// watch scans a drop directory for spreadsheets and ingests each new file
// into its own listing set. Files whose batch hit store trouble are left
// unmarked so the next scan retries them; row rejections are final.
func watch(ctx context.Context, opts options, store *graph.Store, deps ingest.Deps, log *slog.Logger) error {
	statePath := opts.state
	if statePath == "" {
		statePath = filepath.Join(opts.watchDir, ".ingest-state.json")
	}
	if err := os.MkdirAll(opts.watchDir, 0o755); err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}
	processed := loadState(statePath)
	sets := graph.NewListingSets(store)

	log.Info("watching for spreadsheets", "dir", opts.watchDir, "interval", opts.interval)

	scan := func() {
		mLastScan.Set(time.Now().Unix())
		entries, err := os.ReadDir(opts.watchDir)
		if err != nil {
			log.Error("readdir failed", "dir", opts.watchDir, "error", err)
			return
		}
		for _, e := range entries {
			if ctx.Err() != nil {
				return
			}
			name := e.Name()
			if e.IsDir() || name[0] == '.' || !loadableExt(name) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			key := fmt.Sprintf("%s:%d", name, info.Size())
			if processed[key] {
				continue
			}

			rows, err := source.LoadFile(filepath.Join(opts.watchDir, name))
			if err != nil {
				log.Error("load failed, will retry on next scan", "file", name, "error", err)
				continue
			}
			ls, err := sets.Create(ctx, strings.TrimSuffix(name, filepath.Ext(name)), "", opts.setOwner)
			if err != nil {
				log.Error("create listing set failed", "file", name, "error", err)
				continue
			}

			mActiveBatch.Inc()
			start := time.Now()
			summary := ingest.Ingest(ctx, deps, rows, ls.ID)
			mBatchDur.Since(start)
			mActiveBatch.Dec()
			recordSummary(summary)
			mFilesSeen.Inc()

			if storeTrouble(summary) {
				log.Warn("file had store errors, will retry on next scan",
					"file", name, "skipped", summary.Skipped)
				continue
			}
			processed[key] = true
			saveState(statePath, processed)
			log.Info("file done",
				"file", name,
				"listing_set", ls.ID,
				"processed", summary.Processed,
				"skipped", summary.Skipped,
			)
		}
	}

	scan()
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case <-ticker.C:
			scan()
		}
	}
}

func loadableExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".csv":
		return true
	}
	return false
}

// storeTrouble reports whether any row failed on the store side rather than
// on its own content. Content rejections never warrant a retry.
func storeTrouble(s ingest.Summary) bool {
	for _, re := range s.Errors {
		switch skipLabel(re.Err) {
		case "store", "circuit_open":
			return true
		}
	}
	return false
}

func loadState(path string) map[string]bool {
	m := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}
	json.Unmarshal(data, &m)
	return m
}

func saveState(path string, m map[string]bool) {
	data, _ := json.Marshal(m)
	os.WriteFile(path, data, 0o644)
}

func resolveListingSet(ctx context.Context, sets *graph.ListingSets, id, name, owner string) (string, error) {
	if id != "" {
		ls, ok, err := sets.Find(ctx, id)
		if err != nil {
			return "", fmt.Errorf("listing set %s: %w", id, err)
		}
		if !ok {
			return "", fmt.Errorf("listing set %s: %w", id, graph.ErrListingSetNotFound)
		}
		return ls.ID, nil
	}
	if name == "" {
		return "", errors.New("one of -set or -set-name is required")
	}
	ls, err := sets.Create(ctx, name, "", owner)
	if err != nil {
		return "", fmt.Errorf("create listing set: %w", err)
	}
	slog.Info("created listing set", "id", ls.ID, "name", ls.Name, "owner", ls.Owner)
	return ls.ID, nil
}

func recordSummary(s ingest.Summary) {
	mBatches.Inc()
	mRowsProcessed.Add(int64(s.Processed))
	for _, re := range s.Errors {
		mRowsSkipped(skipLabel(re.Err)).Inc()
	}
}

// skipLabel maps row errors onto a small label set to keep cardinality bounded.
func skipLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingField):
		return "missing_field"
	case errors.Is(err, domain.ErrUnparseableTimestamp):
		return "bad_timestamp"
	case errors.Is(err, domain.ErrInvalidCaller):
		return "invalid_caller"
	case errors.Is(err, domain.ErrInvalidCallee):
		return "invalid_callee"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	default:
		return "store"
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
