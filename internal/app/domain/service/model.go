// Package service holds the service listing record: the ownership state
// machine tracking who is entitled to sale proceeds for a listed asset.
package service

import "time"

// Agreement captures one term of the service offering. Agreements are fixed
// at listing time and embedded in the asset metadata.
type Agreement struct {
	Title   string `json:"title"`
	Details string `json:"details"`
}

// Record is one listed service. OriginalVendor never changes and is the
// perpetual royalty beneficiary; CurrentVendor names the party entitled to
// proceeds and to authorize reprice, withdraw and accept-ask. Records are
// never deleted and persist as provenance.
type Record struct {
	AssetID        string      `json:"asset_id"`
	OriginalVendor string      `json:"original_vendor"`
	CurrentVendor  string      `json:"current_vendor"`
	Price          uint64      `json:"price"`
	Soulbound      bool        `json:"soulbound"`
	Agreements     []Agreement `json:"agreements,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
