// Package blockchaintest provides an in-memory blockchain.Backend for tests.
package blockchaintest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// CallHandler answers eth_call for one contract method.
type CallHandler func(call ethereum.CallMsg) ([]byte, error)

// Backend is a scriptable fake chain. Zero values give a chain that accepts
// every transaction and mines it immediately with status 1.
type Backend struct {
	mu sync.Mutex

	ChainIDValue *big.Int
	Nonce        uint64
	TipCap       *big.Int
	BaseFee      *big.Int
	GasEstimate  uint64

	// Calls maps contract address + 4-byte selector to a handler.
	Calls map[common.Address]map[[4]byte]CallHandler

	EstimateErr func(call ethereum.CallMsg) error
	// SendErrs are returned by successive SendTransaction calls before sends succeed.
	SendErrs []error
	// ReceiptStatus overrides the mined status per calldata selector.
	ReceiptStatus map[[4]byte]uint64
	// PendingPolls is the number of receipt lookups answered with NotFound before mining.
	PendingPolls int
	// NeverMine keeps every transaction pending.
	NeverMine bool

	Sent      []*types.Transaction
	SendCalls int
	polls     map[common.Hash]int
}

var ErrNoHandler = errors.New("blockchaintest: no call handler")

// New returns a fake for chain id 1337.
func New() *Backend {
	return &Backend{
		ChainIDValue: big.NewInt(1337),
		TipCap:       big.NewInt(1_000_000_000),
		BaseFee:      big.NewInt(2_000_000_000),
		GasEstimate:  50_000,
		Calls:        make(map[common.Address]map[[4]byte]CallHandler),
		polls:        make(map[common.Hash]int),
	}
}

// Handle registers a handler for a selector on a contract.
func (b *Backend) Handle(contract common.Address, selector []byte, h CallHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Calls[contract] == nil {
		b.Calls[contract] = make(map[[4]byte]CallHandler)
	}
	var key [4]byte
	copy(key[:], selector)
	b.Calls[contract][key] = h
}

// SentCount returns the number of accepted transactions.
func (b *Backend) SentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Sent)
}

// SentSelectors returns the 4-byte selectors of accepted transactions in order.
func (b *Backend) SentSelectors() [][4]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][4]byte, 0, len(b.Sent))
	for _, tx := range b.Sent {
		out = append(out, selectorOf(tx.Data()))
	}
	return out
}

func selectorOf(data []byte) [4]byte {
	var key [4]byte
	copy(key[:], data)
	return key
}

func (b *Backend) ChainID(ctx context.Context) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return new(big.Int).Set(b.ChainIDValue), nil
}

func (b *Backend) CallContract(ctx context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if call.To == nil {
		return nil, ErrNoHandler
	}
	b.mu.Lock()
	h, ok := b.Calls[*call.To][selectorOf(call.Data)]
	b.mu.Unlock()
	if !ok {
		return nil, ErrNoHandler
	}
	return h(call)
}

func (b *Backend) PendingNonceAt(ctx context.Context, _ common.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Nonce, nil
}

func (b *Backend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return new(big.Int).Set(b.TipCap), nil
}

func (b *Backend) HeaderByNumber(ctx context.Context, _ *big.Int) (*types.Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &types.Header{Number: big.NewInt(100), BaseFee: new(big.Int).Set(b.BaseFee)}, nil
}

func (b *Backend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if b.EstimateErr != nil {
		if err := b.EstimateErr(call); err != nil {
			return 0, err
		}
	}
	return b.GasEstimate, nil
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.SendCalls++
	if len(b.SendErrs) > 0 {
		err := b.SendErrs[0]
		b.SendErrs = b.SendErrs[1:]
		return err
	}
	b.Sent = append(b.Sent, tx)
	b.Nonce++
	return nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var tx *types.Transaction
	for _, sent := range b.Sent {
		if sent.Hash() == txHash {
			tx = sent
			break
		}
	}
	if tx == nil || b.NeverMine {
		return nil, ethereum.NotFound
	}
	if b.polls[txHash] < b.PendingPolls {
		b.polls[txHash]++
		return nil, ethereum.NotFound
	}

	status := types.ReceiptStatusSuccessful
	if s, ok := b.ReceiptStatus[selectorOf(tx.Data())]; ok {
		status = s
	}
	return &types.Receipt{
		Status:      status,
		TxHash:      txHash,
		GasUsed:     tx.Gas() / 2,
		BlockNumber: big.NewInt(101),
	}, nil
}
