package account

import (
	"context"

	"github.com/mimisupply/delivery/internal/types/account"
)

type AccountRepository interface {
	CreateAccount(ctx context.Context, a *account.Account) error
	FindAccountByLogin(ctx context.Context, login string) (*account.Account, error)
}
