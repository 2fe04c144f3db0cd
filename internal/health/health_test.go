package health

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsHealthyScenarios(t *testing.T) {
	tests := []struct {
		name       string
		loan       int64
		collateral int64
		want       bool
	}{
		{"zero loan zero collateral", 0, 0, false},
		{"loan against zero collateral", 1000, 0, false},
		{"exactly at threshold", 7000, 10000, true},
		{"one below threshold", 6999, 10000, false},
		{"floor division", 1, 3, false},
		{"zero loan positive collateral", 0, 10, false},
		{"over collateral value", 20, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsHealthy(big.NewInt(tt.loan), big.NewInt(tt.collateral))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRatioFloorsDivision(t *testing.T) {
	r, ok := Ratio(big.NewInt(1), big.NewInt(3))
	require.True(t, ok)
	assert.Equal(t, int64(3333), r.Int64())

	_, ok = Ratio(big.NewInt(5), big.NewInt(0))
	assert.False(t, ok)

	_, ok = Ratio(big.NewInt(5), nil)
	assert.False(t, ok)
}

func TestIsHealthyNilLoanIsZero(t *testing.T) {
	assert.False(t, IsHealthy(nil, big.NewInt(100)))
	assert.False(t, IsHealthy(nil, nil))
}

func TestIsHealthyMatchesFormula(t *testing.T) {
	for c := int64(1); c <= 40; c++ {
		for l := int64(0); l <= 60; l++ {
			want := (l*RatioScale)/c >= ThresholdBps
			assert.Equal(t, want, IsHealthy(big.NewInt(l), big.NewInt(c)), "loan=%d collateral=%d", l, c)
		}
	}
}

func TestIsHealthyMonotonicInLoan(t *testing.T) {
	collateral := big.NewInt(997)
	flipped := false
	for l := int64(0); l <= 2000; l++ {
		got := IsHealthy(big.NewInt(l), collateral)
		if flipped {
			require.True(t, got, "result went back to unhealthy at loan=%d", l)
		}
		if got {
			flipped = true
		}
	}
	assert.True(t, flipped)
}

func TestIsHealthyTruncationNearBoundary(t *testing.T) {
	// 7 * 10000 / 10001 truncates to 6.
	assert.False(t, IsHealthy(big.NewInt(7), big.NewInt(10001)))

	r, _ := Ratio(big.NewInt(7001), big.NewInt(10001))
	assert.Equal(t, int64(7000), r.Int64())
	assert.True(t, IsHealthy(big.NewInt(7001), big.NewInt(10001)))

	// Exact multiples truncate identically.
	small, _ := Ratio(big.NewInt(2), big.NewInt(3))
	scaled, _ := Ratio(big.NewInt(2_000_000), big.NewInt(3_000_000))
	assert.Equal(t, small.Int64(), scaled.Int64())

	// Amounts that were rounded while scaling land on opposite sides.
	assert.False(t, IsHealthy(big.NewInt(10), big.NewInt(14286)))
	assert.True(t, IsHealthy(big.NewInt(10_000_000), big.NewInt(14_285_714)))
}

func TestIsHealthyEighteenDecimals(t *testing.T) {
	wei := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	loan := new(big.Int).Mul(big.NewInt(70), wei)
	collateral := new(big.Int).Mul(big.NewInt(100), wei)
	assert.True(t, IsHealthy(loan, collateral))

	loan.Sub(loan, big.NewInt(1))
	assert.False(t, IsHealthy(loan, collateral))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Healthy", Label(true))
	assert.Equal(t, "Unhealthy", Label(false))
}
