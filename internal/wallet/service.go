package wallet

import (
	"context"
	"strings"

	"github.com/leeglobal/lee_ledger/internal/ledger"
)

// Service is the read side for account holders.
type Service struct {
	store ledger.Store
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// View returns the committed balance of account and every transfer touching
// it. Unknown accounts have a zero balance and no transfers.
func (s *Service) View(ctx context.Context, account string) (AccountView, error) {
	if strings.TrimSpace(account) == "" {
		return AccountView{}, ledger.Invalid("account", "is required")
	}
	balance, err := s.store.Balance(ctx, account)
	if err != nil {
		return AccountView{}, err
	}
	transfers, err := s.store.TransfersFor(ctx, account)
	if err != nil {
		return AccountView{}, err
	}
	if transfers == nil {
		transfers = []ledger.Transfer{}
	}
	return AccountView{Account: account, Balance: balance, Transfers: transfers}, nil
}
