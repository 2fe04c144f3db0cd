package wallet

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Hardhat's first default account.
const (
	testKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestNewWallet(t *testing.T) {
	for _, in := range []string{testKey, "0x" + testKey, "  " + testKey + "\n"} {
		w, err := NewWallet(in)
		require.NoError(t, err)
		assert.Equal(t, testAddress, w.String())
	}

	_, err := NewWallet("not-a-key")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLoadKeystore(t *testing.T) {
	pk, err := crypto.HexToECDSA(testKey)
	require.NoError(t, err)

	key := &keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(pk.PublicKey),
		PrivateKey: pk,
	}
	data, err := keystore.EncryptKey(key, "secret", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, data, 0600))

	w, err := LoadKeystore(path, "secret")
	require.NoError(t, err)
	assert.Equal(t, testAddress, w.String())

	_, err = LoadKeystore(path, "wrong")
	assert.Error(t, err)

	_, err = LoadKeystore(filepath.Join(t.TempDir(), "missing.json"), "secret")
	assert.Error(t, err)
}

func TestSignTx(t *testing.T) {
	w, err := NewWallet(testKey)
	require.NoError(t, err)

	chainID := big.NewInt(1337)
	to := common.HexToAddress("0x1000000000000000000000000000000000000001")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     7,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(10),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(0),
	})

	signed, err := w.SignTx(tx, chainID)
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, w.Address, sender)
}
