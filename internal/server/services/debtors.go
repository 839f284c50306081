// Package services contains server-side business logic: registering and
// reading debtors, and running filtered searches through the result cache.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/debtorkeeper/internal/common"
	"github.com/dmitrijs2005/debtorkeeper/internal/logging"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/cacherefresh"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/filters"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/models"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/vault"
)

// ErrInvalidDebtor is returned by Register for a debtor missing its name or
// carrying a malformed CPF/CNPJ.
var ErrInvalidDebtor = errors.New("invalid debtor")

// DebtorVault is the sealed storage the services work through.
// *vault.EncryptedRepository implements it.
type DebtorVault interface {
	SaveEncrypted(ctx context.Context, d *models.Debtor) (string, error)
	FindDecryptedByID(ctx context.Context, id string) (*models.Debtor, error)
	FindAllDecrypted(ctx context.Context) ([]*models.Debtor, *vault.DecryptTally, error)
	FindManyDecrypted(ctx context.Context, ids []string) ([]*models.Debtor, *vault.DecryptTally, error)
	Search(ctx context.Context, v filters.Validated) ([]*models.Debtor, *vault.DecryptTally, error)
	ScopeKey(v filters.Validated) string
}

// ResultCache is the part of *cacherefresh.Manager the debtor service uses.
type ResultCache interface {
	Cached(scope string) ([]string, bool)
	InvalidateAll()
}

// DebtorService registers and reads individual debtors.
type DebtorService struct {
	vault DebtorVault
	cache ResultCache
	log   logging.Logger
}

func NewDebtorService(v DebtorVault, cache ResultCache, log logging.Logger) *DebtorService {
	if log == nil {
		log = logging.Nop{}
	}
	return &DebtorService{vault: v, cache: cache, log: log.With("service", "debtors")}
}

// Register stores d sealed and returns its ID. Cached search scopes are
// dropped because any of them may now be incomplete.
func (s *DebtorService) Register(ctx context.Context, d *models.Debtor) (string, error) {
	if d == nil || strings.TrimSpace(d.Name) == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidDebtor)
	}
	if n := len(common.DigitsOnly(d.DocumentID)); n != 11 && n != 14 {
		return "", fmt.Errorf("%w: %s", ErrInvalidDebtor, filters.MsgInvalidDocument)
	}

	id, err := s.vault.SaveEncrypted(ctx, d)
	if errors.Is(err, vault.ErrInvalidID) {
		return "", fmt.Errorf("%w: %w", ErrInvalidDebtor, err)
	}
	if err != nil {
		s.log.Error(ctx, "register debtor failed", "error", err)
		return "", err
	}

	if s.cache != nil {
		s.cache.InvalidateAll()
	}
	s.log.Info(ctx, "debtor registered", "id", id)
	return id, nil
}

// Get returns one decrypted debtor. common.ErrorNotFound and
// *cryptox.DecryptionError are passed through unchanged.
func (s *DebtorService) Get(ctx context.Context, id string) (*models.Debtor, error) {
	return s.vault.FindDecryptedByID(ctx, id)
}

// List returns every debtor that could be decrypted and the tally of those
// that could not. The ID list of the last full refresh is used when cached.
func (s *DebtorService) List(ctx context.Context) ([]*models.Debtor, *vault.DecryptTally, error) {
	if s.cache != nil {
		if ids, ok := s.cache.Cached(cacherefresh.FullScope); ok {
			out, tally, err := s.vault.FindManyDecrypted(ctx, ids)
			if err != nil {
				s.log.Error(ctx, "list debtors failed", "error", err)
				return nil, nil, err
			}
			return out, tally, nil
		}
	}

	out, tally, err := s.vault.FindAllDecrypted(ctx)
	if err != nil {
		s.log.Error(ctx, "list debtors failed", "error", err)
		return nil, nil, err
	}
	return out, tally, nil
}
