package client

import "time"

// Response types mirror the API's wire format so importers of this package
// do not depend on the server's internal packages.

// MarketplaceConfig is the singleton marketplace configuration.
type MarketplaceConfig struct {
	Admin                 string    `json:"admin"`
	RoyaltyFeeBasisPoints uint16    `json:"royalty_fee_basis_points"`
	Initialized           bool      `json:"initialized"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Agreement is one term of a service offering, fixed at listing time.
type Agreement struct {
	Title   string `json:"title"`
	Details string `json:"details"`
}

// ServiceRecord is one listed service. OriginalVendor is the perpetual
// royalty beneficiary; CurrentVendor is the party entitled to proceeds.
type ServiceRecord struct {
	AssetID        string      `json:"asset_id"`
	OriginalVendor string      `json:"original_vendor"`
	CurrentVendor  string      `json:"current_vendor"`
	Price          uint64      `json:"price"`
	Soulbound      bool        `json:"soulbound"`
	Agreements     []Agreement `json:"agreements,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// AskRecord is an open resale offer. Escrow equals AskPrice while the offer
// is open.
type AskRecord struct {
	AssetID   string    `json:"asset_id"`
	Asker     string    `json:"asker"`
	AskPrice  uint64    `json:"ask_price"`
	Escrow    uint64    `json:"escrow"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
