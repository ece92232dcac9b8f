package types

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// AllocatedAsset is the immutable snapshot of a digital asset copied onto an
// order item at allocation time. Later pool mutations never touch it.
type AllocatedAsset struct {
	AssetID     string    `json:"assetId"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	AllocatedAt time.Time `json:"allocatedAt"`
}

// AllocatedAssets is stored as a jsonb column on order items.
type AllocatedAssets []AllocatedAsset

// Value serializes the snapshot list for the driver. Updates built from raw
// column maps skip the model serializer, so the jsonb column types marshal
// themselves.
func (a AllocatedAssets) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// StatusChange is a single append-only entry in a transaction's audit trail.
type StatusChange struct {
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}

// StatusHistory is stored as a jsonb column on ledger transactions.
type StatusHistory []StatusChange

// Value serializes the history for the driver.
func (h StatusHistory) Value() (driver.Value, error) {
	if h == nil {
		return nil, nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// JSONMap is a free-form jsonb payload.
type JSONMap map[string]any

// Value serializes the payload for the driver.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
