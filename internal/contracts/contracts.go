// internal/contracts/contracts.go
package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rovshanmuradov/defilend/internal/blockchain"
)

var (
	// ErrEmptyResult is returned when a call returns no data, usually because no contract is deployed at the address.
	ErrEmptyResult    = errors.New("empty call result")
	ErrUnexpectedType = errors.New("unexpected return type")
)

// BorrowFi reads and encodes calls for the lending pool contract.
type BorrowFi struct {
	Address common.Address
	reader  blockchain.Reader
}

func NewBorrowFi(address common.Address, reader blockchain.Reader) *BorrowFi {
	return &BorrowFi{Address: address, reader: reader}
}

func (b *BorrowFi) TotalBorrowed(ctx context.Context) (*big.Int, error) {
	return callUint(ctx, b.reader, BorrowFiABI, b.Address, common.Address{}, "totalBorrowed")
}

func (b *BorrowFi) TotalCollateral(ctx context.Context) (*big.Int, error) {
	return callUint(ctx, b.reader, BorrowFiABI, b.Address, common.Address{}, "totalCollateral")
}

func (b *BorrowFi) CollateralOf(ctx context.Context, user common.Address) (*big.Int, error) {
	return callUint(ctx, b.reader, BorrowFiABI, b.Address, common.Address{}, "collateralOf", user)
}

func (b *BorrowFi) LoanOf(ctx context.Context, user common.Address) (*big.Int, error) {
	return callUint(ctx, b.reader, BorrowFiABI, b.Address, common.Address{}, "loanOf", user)
}

// GetLTC returns the loan-to-collateral figure the contract computes for msg.sender.
func (b *BorrowFi) GetLTC(ctx context.Context, from common.Address) (*big.Int, error) {
	return callUint(ctx, b.reader, BorrowFiABI, b.Address, from, "getLTC")
}

// IsHealthy returns the contract's own health flag for msg.sender.
func (b *BorrowFi) IsHealthy(ctx context.Context, from common.Address) (bool, error) {
	out, err := call(ctx, b.reader, BorrowFiABI, b.Address, from, "isHealthy")
	if err != nil {
		return false, err
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("%w: isHealthy returned %T", ErrUnexpectedType, out[0])
	}
	return v, nil
}

func (b *BorrowFi) AddCollateralData(amount *big.Int) ([]byte, error) {
	return BorrowFiABI.Pack("addCollateral", amount)
}

func (b *BorrowFi) BorrowData(amount *big.Int) ([]byte, error) {
	return BorrowFiABI.Pack("borrow", amount)
}

func (b *BorrowFi) RepayData(amount *big.Int) ([]byte, error) {
	return BorrowFiABI.Pack("repay", amount)
}

func (b *BorrowFi) WithdrawCollateralData(amount *big.Int) ([]byte, error) {
	return BorrowFiABI.Pack("withdrawCollateral", amount)
}

// ERC20 is a token contract.
type ERC20 struct {
	Address common.Address
	Symbol  string
	reader  blockchain.Reader
}

func NewERC20(address common.Address, symbol string, reader blockchain.Reader) *ERC20 {
	return &ERC20{Address: address, Symbol: symbol, reader: reader}
}

func (t *ERC20) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return callUint(ctx, t.reader, ERC20ABI, t.Address, common.Address{}, "balanceOf", owner)
}

func (t *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return callUint(ctx, t.reader, ERC20ABI, t.Address, common.Address{}, "allowance", owner, spender)
}

func (t *ERC20) ApproveData(spender common.Address, amount *big.Int) ([]byte, error) {
	return ERC20ABI.Pack("approve", spender, amount)
}

func call(ctx context.Context, reader blockchain.Reader, parsed abi.ABI, to, from common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	raw, err := reader.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s at %s: %w", method, to.Hex(), ErrEmptyResult)
	}
	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", method, ErrEmptyResult)
	}
	return out, nil
}

func callUint(ctx context.Context, reader blockchain.Reader, parsed abi.ABI, to, from common.Address, method string, args ...interface{}) (*big.Int, error) {
	out, err := call(ctx, reader, parsed, to, from, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", ErrUnexpectedType, method, out[0])
	}
	return v, nil
}
