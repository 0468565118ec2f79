package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/sigintlabs/cdrgraph/engine/domain"
	"github.com/sigintlabs/cdrgraph/pkg/natsutil"
	"github.com/sigintlabs/cdrgraph/pkg/resilience"
)

const (
	// IngestSubject carries batch ingestion requests.
	IngestSubject = "engine.cdr.ingest"
	// SummarySubject carries run summaries for whoever surfaces them.
	SummarySubject = "engine.cdr.ingest.summary"
	// DLQSubject is the dead letter queue for batches that could not start.
	DLQSubject = "engine.cdr.ingest.dlq"
	// MaxRetries before a batch request goes to the DLQ.
	MaxRetries = 3
)

// BatchRequest is a NATS-delivered ingestion request: the container id and
// the raw rows, header spellings intact.
type BatchRequest struct {
	ListingSetID string              `json:"listing_set_id"`
	Rows         []*domain.RawRecord `json:"rows"`
}

// ConsumerDeps extends Deps with what the NATS consumer needs.
type ConsumerDeps struct {
	Deps
	// Ping reports whether the store can take a batch at all. A failing
	// ping means "batch could not start" and triggers retry/DLQ instead of
	// burning through every row.
	Ping    func(ctx context.Context) error
	Limiter *resilience.Limiter // optional, paces batch intake
}

// dlqMessage is published to the DLQ when a batch could not start.
type dlqMessage struct {
	Request BatchRequest `json:"request"`
	Error   string       `json:"error"`
	Retries int          `json:"retries"`
}

// StartConsumer subscribes to IngestSubject and runs each received batch
// through the ingestor. Row failures are summary entries, never retries;
// only a batch that could not start is retried and eventually dead-lettered.
func StartConsumer(nc *nats.Conn, deps ConsumerDeps) (*nats.Subscription, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(IngestSubject, func(msg *nats.Msg) {
		var req BatchRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Error("ingest: bad batch request", "error", err)
			return
		}

		ctx := context.Background()

		if deps.Limiter != nil {
			if err := deps.Limiter.Wait(ctx); err != nil {
				log.Error("ingest: limiter wait", "error", err)
				return
			}
		}

		if deps.Ping != nil {
			if err := deps.Ping(ctx); err != nil {
				retries := retryCount(msg) + 1
				log.Error("ingest: batch could not start",
					"listing_set", req.ListingSetID,
					"error", err,
					"retry", retries,
				)
				if retries >= MaxRetries {
					dlq := dlqMessage{Request: req, Error: err.Error(), Retries: retries}
					if perr := natsutil.Publish(ctx, nc, DLQSubject, dlq); perr != nil {
						log.Error("ingest: DLQ publish failed", "error", perr)
					}
					return
				}
				retry := nats.NewMsg(IngestSubject)
				retry.Data = msg.Data
				retry.Header = nats.Header{}
				retry.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
				if perr := nc.PublishMsg(retry); perr != nil {
					log.Error("ingest: retry publish failed", "error", perr)
				}
				return
			}
		}

		summary := Ingest(ctx, deps.Deps, req.Rows, req.ListingSetID)

		if msg.Reply != "" {
			data, _ := json.Marshal(summary)
			if err := msg.Respond(data); err != nil {
				log.Error("ingest: respond failed", "error", err)
			}
			return
		}
		if err := natsutil.Publish(ctx, nc, SummarySubject, summary); err != nil {
			log.Error("ingest: summary publish failed", "error", err)
		}
	})
}

func retryCount(msg *nats.Msg) int {
	if msg.Header == nil {
		return 0
	}
	n := 0
	if v := msg.Header.Get("X-Retry-Count"); v != "" {
		fmt.Sscanf(v, "%d", &n)
	}
	return n
}
