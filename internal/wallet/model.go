package wallet

import (
	"github.com/shopspring/decimal"

	"github.com/leeglobal/lee_ledger/internal/ledger"
)

// AccountView is what an account holder sees on the dashboard.
type AccountView struct {
	Account   string            `json:"email"`
	Balance   decimal.Decimal   `json:"balance"`
	Transfers []ledger.Transfer `json:"transfers"`
}
