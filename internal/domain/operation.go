package domain

import (
	"fmt"
	"strings"
)

// Operation is one of the four lending actions.
type Operation string

const (
	OpAddCollateral      Operation = "add_collateral"
	OpBorrow             Operation = "borrow"
	OpRepay              Operation = "repay"
	OpWithdrawCollateral Operation = "withdraw_collateral"
)

// Operations lists the actions in dashboard order.
var Operations = []Operation{OpAddCollateral, OpBorrow, OpRepay, OpWithdrawCollateral}

// Title returns a human readable name.
func (o Operation) Title() string {
	switch o {
	case OpAddCollateral:
		return "Add collateral"
	case OpBorrow:
		return "Borrow"
	case OpRepay:
		return "Repay"
	case OpWithdrawCollateral:
		return "Withdraw collateral"
	default:
		return string(o)
	}
}

// Token returns the symbol of the token the amount is denominated in.
func (o Operation) Token() string {
	switch o {
	case OpAddCollateral, OpWithdrawCollateral:
		return "CLT"
	default:
		return "BFI"
	}
}

// ParseOperation accepts the canonical name or a dashed alias such as "add-collateral" or "withdraw".
func ParseOperation(s string) (Operation, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if norm == "withdraw" {
		return OpWithdrawCollateral, nil
	}
	for _, op := range Operations {
		if string(op) == norm {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q", s)
}
