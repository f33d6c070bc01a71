package supplier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"batterystock/internal/core/id"
	"batterystock/internal/core/types"
)

// Service manages supplier records. Balances change only via the ledger.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a supplier service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create registers a supplier with zero balances.
func (s *Service) Create(ctx context.Context, sup *Supplier) error {
	now := s.now().UTC()
	sup.ID = id.New()
	sup.Name = strings.TrimSpace(sup.Name)
	sup.TotalDebit = types.Zero()
	sup.TotalCredit = types.Zero()
	sup.Version = 1
	sup.CreatedAt = now
	sup.UpdatedAt = now
	if err := sup.Validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, sup); err != nil {
		return fmt.Errorf("create supplier: %w", err)
	}
	return nil
}

// Get returns a supplier or NotFound.
func (s *Service) Get(ctx context.Context, supplierID string) (*Supplier, error) {
	return s.repo.Get(ctx, supplierID)
}
