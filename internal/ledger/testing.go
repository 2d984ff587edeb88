package ledger

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that overwrites an account balance on the
// in-memory store without recording a replenishment.
func SeedBalance(s Store, account string, amount decimal.Decimal) {
	if mem, ok := s.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[account] = amount
	}
}
