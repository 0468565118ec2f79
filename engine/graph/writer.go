package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sigintlabs/cdrgraph/engine/domain"
)

// Writer turns one normalized record into its graph fragment: upserted
// endpoint nodes, a fresh communication event, and the five relationships
// tying them together. Each call is one atomic transaction.
type Writer struct {
	store *Store
}

// NewWriter creates a Writer over the store.
func NewWriter(store *Store) *Writer {
	return &Writer{store: store}
}

// writeEventCypher merges the endpoint nodes by identity key and creates
// the event. Tower coordinates are set ON CREATE only, so the first row
// that names a tower fixes them for good. Events are always created, never
// merged: two identical rows are two events.
const writeEventCypher = `MATCH (ls:ListingSet {id: $listing_set_id})
MERGE (caller:Subscriber {phoneNumber: $caller})
MERGE (callee:Subscriber {phoneNumber: $callee})
MERGE (device:Device {imei: $imei})
MERGE (tower:CellTower {name: $location})
ON CREATE SET tower.longitude = $lon, tower.latitude = $lat
CREATE (event:Communication {
	id: $event_id,
	caller_num: $caller,
	callee_num: $callee,
	timestamp: $timestamp,
	duration_str: $duration,
	type: $kind,
	imei: $imei,
	location: $location
})
CREATE (caller)-[:INITIATED]->(event)
CREATE (event)-[:DIRECTED_TO]->(callee)
CREATE (event)-[:USED_DEVICE]->(device)
CREATE (event)-[:ROUTED_THROUGH]->(tower)
CREATE (event)-[:PART_OF]->(ls)`

// Write persists one record into the given listing set. A missing listing
// set fails this row only, as ErrListingSetNotFound.
func (w *Writer) Write(ctx context.Context, rec domain.NormalizedRecord, listingSetID string) error {
	_, err := w.store.write(ctx, func(tx txRunner) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (ls:ListingSet {id: $id}) RETURN ls.id`,
			map[string]any{"id": listingSetID})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, fmt.Errorf("%w: %s", ErrListingSetNotFound, listingSetID)
		}

		var lon, lat any
		if rec.Coords != nil {
			lon, lat = rec.Coords.Longitude, rec.Coords.Latitude
		}
		_, err = tx.Run(ctx, writeEventCypher, map[string]any{
			"listing_set_id": listingSetID,
			"event_id":       uuid.NewString(),
			"caller":         rec.Caller,
			"callee":         rec.Callee,
			"timestamp":      rec.Timestamp,
			"duration":       rec.Duration,
			"kind":           string(rec.Kind),
			"imei":           rec.IMEI,
			"location":       rec.Location,
			"lon":            lon,
			"lat":            lat,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graph write: %w", err)
	}
	return nil
}
