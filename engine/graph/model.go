// Package graph persists normalized communication records as a typed graph
// in Neo4j: subscribers, devices, cell towers, communication events, and
// the listing sets that scope one ingestion batch.
package graph

import "time"

// Node labels.
const (
	LabelSubscriber    = "Subscriber"
	LabelDevice        = "Device"
	LabelCellTower     = "CellTower"
	LabelCommunication = "Communication"
	LabelListingSet    = "ListingSet"
	LabelUser          = "User"
)

// Relationship types. All are created by ingestion and never deleted here.
const (
	RelInitiated     = "INITIATED"
	RelDirectedTo    = "DIRECTED_TO"
	RelUsedDevice    = "USED_DEVICE"
	RelRoutedThrough = "ROUTED_THROUGH"
	RelPartOf        = "PART_OF"
	RelOwns          = "OWNS"
)

// Subscriber is keyed by canonical phone number. Service destinations share
// the label, keyed by their raw name; the communication event carries the
// distinction.
type Subscriber struct {
	PhoneNumber string `json:"phoneNumber"`
}

// Device is keyed by IMEI. Rows without a device identifier all attach to
// the ""-keyed node (empty-as-equal key semantics).
type Device struct {
	IMEI string `json:"imei"`
}

// CellTower is keyed by its location descriptor. Coordinates are written
// only when the node is first created; later rows never overwrite them.
type CellTower struct {
	Name      string  `json:"name"`
	Longitude float64 `json:"longitude,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
}

// ListingSet scopes the communication events of one ingestion run to one
// owner.
type ListingSet struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Owner       string    `json:"owner_username"`
	CreatedAt   time.Time `json:"createdAt"`
}
