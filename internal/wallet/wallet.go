// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrInvalidKey = errors.New("invalid private key")

// Wallet holds the account key used to sign lending transactions.
type Wallet struct {
	Address common.Address
	key     *ecdsa.PrivateKey
}

// NewWallet creates a wallet from a hex-encoded private key, with or without 0x prefix.
func NewWallet(privateKeyHex string) (*Wallet, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return fromKey(key), nil
}

// LoadKeystore decrypts a v3 keystore file.
func LoadKeystore(path, passphrase string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}
	key, err := keystore.DecryptKey(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore: %w", err)
	}
	return fromKey(key.PrivateKey), nil
}

func fromKey(key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{
		Address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}
}

// SignTx signs tx for chainID with the latest signer for that chain.
func (w *Wallet) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// String returns the checksummed address.
func (w *Wallet) String() string {
	return w.Address.Hex()
}
