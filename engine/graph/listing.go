package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// ErrListingSetNotFound is returned when a row references a container that
// does not exist in the store.
var ErrListingSetNotFound = errors.New("listing set not found")

// ListingSets manages the batch containers that communication events attach
// to. Name/description lifecycle beyond creation belongs to the surface
// layer, not here.
type ListingSets struct {
	store *Store
}

// NewListingSets creates a ListingSets service.
func NewListingSets(store *Store) *ListingSets {
	return &ListingSets{store: store}
}

// Create makes a new ListingSet owned by the given identity and returns it.
// The owner is supplied by the caller's authorization context and is
// trusted as-is.
func (l *ListingSets) Create(ctx context.Context, name, description, owner string) (ListingSet, error) {
	ls := ListingSet{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Owner:       owner,
		CreatedAt:   time.Now().UTC(),
	}

	cypher := `MERGE (u:User {username: $owner})
CREATE (ls:ListingSet {
	id: $id,
	name: $name,
	description: $description,
	owner_username: $owner,
	createdAt: $created_at
})
CREATE (u)-[:OWNS]->(ls)
RETURN ls`

	_, err := l.store.write(ctx, func(tx txRunner) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{
			"id":          ls.ID,
			"name":        ls.Name,
			"description": ls.Description,
			"owner":       ls.Owner,
			"created_at":  ls.CreatedAt,
		})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, fmt.Errorf("listing set %s not returned after create", ls.ID)
		}
		return nil, nil
	})
	if err != nil {
		return ListingSet{}, fmt.Errorf("create listing set: %w", err)
	}
	return ls, nil
}

// Find resolves a ListingSet by id. The boolean reports existence.
func (l *ListingSets) Find(ctx context.Context, id string) (ListingSet, bool, error) {
	var out ListingSet
	found := false

	_, err := l.store.write(ctx, func(tx txRunner) (any, error) {
		res, err := tx.Run(ctx, `MATCH (ls:ListingSet {id: $id}) RETURN ls`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, nil
		}
		node, _, err := neo4j.GetRecordValue[dbtype.Node](res.Record(), "ls")
		if err != nil {
			return nil, err
		}
		out = listingSetFromProps(node.Props)
		found = true
		return nil, nil
	})
	if err != nil {
		return ListingSet{}, false, fmt.Errorf("find listing set: %w", err)
	}
	return out, found, nil
}

func listingSetFromProps(props map[string]any) ListingSet {
	ls := ListingSet{
		ID:          strProp(props, "id"),
		Name:        strProp(props, "name"),
		Description: strProp(props, "description"),
		Owner:       strProp(props, "owner_username"),
	}
	switch t := props["createdAt"].(type) {
	case time.Time:
		ls.CreatedAt = t
	case dbtype.LocalDateTime:
		ls.CreatedAt = t.Time()
	}
	return ls
}
