// Package ask holds the resale offer record. At most one ask exists per
// asset; its presence or absence is explicit through the store, never
// inferred from zeroed fields.
package ask

import "time"

// Record is an open resale offer. Escrow mirrors the balance held by the
// ask's ledger account and must equal AskPrice exactly while the offer is
// open; acceptance disburses the escrow in full.
type Record struct {
	AssetID   string    `json:"asset_id"`
	Asker     string    `json:"asker"`
	AskPrice  uint64    `json:"ask_price"`
	Escrow    uint64    `json:"escrow"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
