// Package ingest drives the per-row pipeline over a batch of raw CDR rows:
// classification, then graph write, with per-row failure isolation and a
// run summary. One bad row never halts a batch.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/sigintlabs/cdrgraph/engine/domain"
	"github.com/sigintlabs/cdrgraph/pkg/fn"
	"github.com/sigintlabs/cdrgraph/pkg/resilience"
)

// RecordWriter persists one normalized record into a listing set.
// *graph.Writer is the production implementation.
type RecordWriter interface {
	Write(ctx context.Context, rec domain.NormalizedRecord, listingSetID string) error
}

// Deps holds the external collaborators of the batch ingestor.
type Deps struct {
	Writer  RecordWriter
	Config  domain.FieldConfig
	Breaker *resilience.Breaker // optional, guards store writes
	Logger  *slog.Logger
}

// RowError records why one row was skipped.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Summary reports one ingestion run. Processed + Skipped equals the number
// of rows attempted; partial success is a normal outcome, not an error.
type Summary struct {
	ListingSetID string     `json:"listing_set_id"`
	Processed    int        `json:"processed"`
	Skipped      int        `json:"skipped"`
	Errors       []RowError `json:"errors,omitempty"`
	Elapsed      time.Duration `json:"elapsed_ns"`
}

// Ingest runs every row through Classify then Write, sequentially. Rows are
// independent transactions: any rejection or store failure is recorded with
// the row index and the loop continues. Rows are never sharded across
// concurrent writers; upsert races on shared nodes are the store's job.
func Ingest(ctx context.Context, deps Deps, rows []*domain.RawRecord, listingSetID string) Summary {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	start := time.Now()

	classify := fn.TracedStage("ingest.classify", func(_ context.Context, rec *domain.RawRecord) fn.Result[domain.NormalizedRecord] {
		return domain.Classify(rec, deps.Config)
	})
	write := fn.TracedStage("ingest.write", func(ctx context.Context, rec domain.NormalizedRecord) fn.Result[domain.NormalizedRecord] {
		call := func(ctx context.Context) error {
			return deps.Writer.Write(ctx, rec, listingSetID)
		}
		var err error
		if deps.Breaker != nil {
			err = deps.Breaker.Call(ctx, call)
		} else {
			err = call(ctx)
		}
		if err != nil {
			return fn.Err[domain.NormalizedRecord](err)
		}
		return fn.Ok(rec)
	})
	pipeline := fn.Then(classify, write)

	sum := Summary{ListingSetID: listingSetID}
	for i, row := range rows {
		result := pipeline(ctx, row)
		if result.IsErr() {
			_, err := result.Unwrap()
			sum.Skipped++
			sum.Errors = append(sum.Errors, RowError{Row: i, Reason: err.Error(), Err: err})
			log.Warn("ingest: row skipped",
				"listing_set", listingSetID,
				"row", i,
				"reason", err.Error(),
			)
			continue
		}
		sum.Processed++
	}

	sum.Elapsed = time.Since(start)
	log.Info("ingest: batch done",
		"listing_set", listingSetID,
		"processed", sum.Processed,
		"skipped", sum.Skipped,
		"elapsed", sum.Elapsed,
	)
	return sum
}
