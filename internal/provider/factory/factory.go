// Package factory maps account configurations to their backend
// variants. It lives apart from package provider so the contract does
// not import its own implementations.
package factory

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nvhoang/maildeck/internal/model"
	"github.com/nvhoang/maildeck/internal/provider"
	"github.com/nvhoang/maildeck/internal/provider/imapmail"
	"github.com/nvhoang/maildeck/internal/provider/localstore"
	"github.com/nvhoang/maildeck/internal/provider/nylasapi"
)

// New builds the variant selected by the account's provider field.
// Construction does not connect; the caller drives the lifecycle.
func New(log *logrus.Logger) provider.Factory {
	return func(account model.Account) (provider.Provider, error) {
		switch account.Provider {
		case model.ProviderIMAP:
			return imapmail.New(account, log), nil
		case model.ProviderNylas:
			return nylasapi.New(account), nil
		case model.ProviderLocal:
			return localstore.New(account, log)
		default:
			return nil, fmt.Errorf("unknown provider type %q", account.Provider)
		}
	}
}
