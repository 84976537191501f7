package domain

import "context"

// TokenClient is the port onto the fungible staking-token contract. Amounts
// are base token units. Transfers are the only external interaction the core
// performs after its own state writes; a transfer error must abort the
// surrounding transaction.
type TokenClient interface {
	BalanceOf(ctx context.Context, token, holder string) (int64, error)
	Transfer(ctx context.Context, token, from, to string, amount int64) error
}
