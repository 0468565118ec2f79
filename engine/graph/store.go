package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// txResult is the minimal interface needed from a query result.
type txResult interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// txRunner is the minimal interface needed from a write transaction.
type txRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (txResult, error)
}

// Store wraps the Neo4j driver. All writes go through one managed
// transaction per call, so a failure partway leaves nothing behind.
type Store struct {
	driver  neo4j.DriverWithContext
	writeTx func(ctx context.Context, work func(tx txRunner) (any, error)) (any, error) // for testing
}

// NewStore creates a Store over an established driver.
func NewStore(driver neo4j.DriverWithContext) *Store {
	return &Store{driver: driver}
}

// VerifyConnectivity checks that the database is reachable. Failing here is
// the one fatal condition: no batch may start without a working store.
func (s *Store) VerifyConnectivity(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// managedTxAdapter adapts neo4j.ManagedTransaction to the txRunner seam.
type managedTxAdapter struct {
	tx neo4j.ManagedTransaction
}

func (a managedTxAdapter) Run(ctx context.Context, cypher string, params map[string]any) (txResult, error) {
	return a.tx.Run(ctx, cypher, params)
}

// write runs work inside one managed write transaction on a fresh session.
func (s *Store) write(ctx context.Context, work func(tx txRunner) (any, error)) (any, error) {
	if s.writeTx != nil {
		return s.writeTx(ctx, work)
	}
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer sess.Close(ctx)

	return sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(managedTxAdapter{tx: tx})
	})
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
