package chain

import (
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
)

// Wallet signs settlement transactions with a Neo N3 private key.
type Wallet struct {
	privateKey *keys.PrivateKey
	account    *wallet.Account
}

// NewWallet creates a wallet from a hex-encoded private key (no 0x prefix).
func NewWallet(privateKeyHex string) (*Wallet, error) {
	priv, err := keys.NewPrivateKeyFromHex(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &Wallet{
		privateKey: priv,
		account:    wallet.NewAccountFromPrivateKey(priv),
	}, nil
}

// Account returns the underlying account for transaction signing.
func (w *Wallet) Account() *wallet.Account {
	return w.account
}

// Address returns the wallet's Neo N3 address.
func (w *Wallet) Address() string {
	return w.privateKey.Address()
}

// ScriptHash returns the hex-encoded script hash of the wallet account.
func (w *Wallet) ScriptHash() string {
	return w.privateKey.GetScriptHash().StringLE()
}

// Sign signs an arbitrary message with the wallet key.
func (w *Wallet) Sign(message []byte) []byte {
	return w.privateKey.Sign(message)
}

// PublicKeyHex returns the compressed public key in hex.
func (w *Wallet) PublicKeyHex() string {
	return w.privateKey.PublicKey().StringCompressed()
}
