package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Snapshot is everything the dashboard shows for one account, read in one pass.
type Snapshot struct {
	Account  common.Address
	ReadOnly bool

	// account position
	Collateral        *big.Int
	Loan              *big.Int
	CollateralBalance *big.Int // CLT in the wallet
	BorrowBalance     *big.Int // BFI in the wallet
	LTC               *big.Int // nil when the contract call failed

	ContractHealthy     bool
	ContractHealthKnown bool

	// client-side evaluation of Loan against Collateral
	SimulatedHealthy bool
	SimulatedRatio   *big.Int // basis points, nil without collateral

	// protocol
	AvailableBorrow    *big.Int // BFI held by the pool
	ResidualCollateral *big.Int // CLT held by the pool
	TotalBorrowed      *big.Int
	TotalCollateral    *big.Int

	CollateralAllowance *big.Int
	BorrowAllowance     *big.Int

	FetchedAt time.Time
}
