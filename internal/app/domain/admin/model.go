package admin

import "time"

// MaxFeeBasisPoints is the royalty denominator: 10000 basis points = 100%.
const MaxFeeBasisPoints uint16 = 10000

// Config is the singleton marketplace configuration record. At most one
// instance exists; once Initialized is set, re-initialization fails.
type Config struct {
	Admin                 string    `json:"admin"`
	RoyaltyFeeBasisPoints uint16    `json:"royalty_fee_basis_points"`
	Initialized           bool      `json:"initialized"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}
