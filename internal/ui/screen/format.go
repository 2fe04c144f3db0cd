package screen

import (
	"fmt"
	"math/big"

	"github.com/rovshanmuradov/defilend/internal/health"
	"github.com/rovshanmuradov/defilend/internal/units"
)

func amount(v *big.Int, token string) string {
	if v == nil {
		return "—"
	}
	return units.FormatEther(v) + " " + token
}

// ratio renders basis points as a percentage.
func ratio(bps *big.Int) string {
	if bps == nil {
		return "—"
	}
	whole := new(big.Int).Quo(bps, big.NewInt(100))
	frac := new(big.Int).Rem(bps, big.NewInt(100))
	return fmt.Sprintf("%s.%02d%%", whole, frac.Int64())
}

func threshold() string {
	return ratio(big.NewInt(health.ThresholdBps))
}

func shortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:8] + "…" + h[len(h)-4:]
}
