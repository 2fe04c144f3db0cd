// internal/health/health.go
package health

import "math/big"

const (
	// RatioScale is the fixed-point scale of the loan-to-collateral ratio (basis points).
	RatioScale = 10000
	// ThresholdBps is the ratio at or above which a position is reported healthy.
	ThresholdBps = 7000
)

var (
	ratioScale   = big.NewInt(RatioScale)
	thresholdBps = big.NewInt(ThresholdBps)
)

// Ratio returns floor(loan * RatioScale / collateral) and false when collateral is zero.
// A nil argument is treated as zero.
func Ratio(loan, collateral *big.Int) (*big.Int, bool) {
	if collateral == nil || collateral.Sign() == 0 {
		return nil, false
	}
	if loan == nil {
		loan = new(big.Int)
	}
	r := new(big.Int).Mul(loan, ratioScale)
	// Quo truncates toward zero, which is floor for the non-negative domain.
	return r.Quo(r, collateral), true
}

// IsHealthy is the client-side solvency preview shown next to the contract's
// own isHealthy flag.
//
// The comparison is kept as the dApp shipped it: a ratio at or above 70% is
// reported healthy and lower utilization unhealthy. That is the inverse of
// usual loan-to-value risk semantics; the contract's flag stays authoritative.
func IsHealthy(loan, collateral *big.Int) bool {
	r, ok := Ratio(loan, collateral)
	if !ok {
		return false
	}
	return r.Cmp(thresholdBps) >= 0
}

// Label renders a health flag the way the dashboard prints it.
func Label(healthy bool) string {
	if healthy {
		return "Healthy"
	}
	return "Unhealthy"
}
