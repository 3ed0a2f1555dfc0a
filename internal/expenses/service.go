package expenses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fleetcore/fleetcore/internal/shared"
)

// Service handles the expense ledger. Mutations through this service are the
// "generic interface": rows owned by the payroll or payout subsystems are
// rejected and must be changed through their owners.
type Service struct {
	repo            Repository
	defaultCurrency string
}

// NewService builds a Service instance.
func NewService(repo Repository, defaultCurrency string) *Service {
	if defaultCurrency == "" {
		defaultCurrency = shared.DefaultCurrency
	}
	return &Service{repo: repo, defaultCurrency: defaultCurrency}
}

// Create records a manually entered expense.
func (s *Service) Create(ctx context.Context, req CreateExpenseRequest) (*Expense, error) {
	cat, err := s.repo.GetCategory(ctx, req.CategoryID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFound("expense category", fmt.Sprintf("%d", req.CategoryID))
		}
		return nil, fmt.Errorf("load category: %w", err)
	}
	if cat.Code == CategoryCodeSalaries || cat.Code == CategoryCodeInvestorPayouts {
		return nil, shared.NewValidation("EXPENSE_RESERVED_CATEGORY",
			fmt.Sprintf("category %s is maintained by its owning subsystem", cat.Code))
	}

	currency := req.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	now := time.Now()
	e := Expense{
		ID:          uuid.New(),
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Amount:      req.Amount,
		Currency:    currency,
		IncurredOn:  req.IncurredOn,
		Branch:      req.Branch,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	return &e, nil
}

// Update mutates an expense. Amount, category and date edits on
// system-managed rows are rejected with a state conflict.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateExpenseRequest) (*Expense, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFound("expense", id.String())
		}
		return nil, fmt.Errorf("get expense: %w", err)
	}

	cat, err := s.repo.GetCategory(ctx, e.CategoryID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("load category: %w", err)
	}

	touchesProtected := req.Amount != nil || req.CategoryID != nil || req.IncurredOn != nil
	if touchesProtected && SystemManaged(*e, cat) {
		return nil, shared.NewStateConflict("EXPENSE_SYSTEM_MANAGED",
			"amount, category and date of a system-managed expense can only change through its owning subsystem", "")
	}

	if req.CategoryID != nil {
		if _, err := s.repo.GetCategory(ctx, *req.CategoryID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewNotFound("expense category", fmt.Sprintf("%d", *req.CategoryID))
			}
			return nil, fmt.Errorf("load category: %w", err)
		}
		e.CategoryID = *req.CategoryID
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.Amount != nil {
		e.Amount = *req.Amount
	}
	if req.IncurredOn != nil {
		e.IncurredOn = *req.IncurredOn
	}
	if req.Branch != nil {
		e.Branch = req.Branch
	}

	if err := s.repo.Update(ctx, *e); err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	return e, nil
}

// Delete soft-deletes an expense, preserving audit history.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewNotFound("expense", id.String())
		}
		return fmt.Errorf("get expense: %w", err)
	}
	cat, err := s.repo.GetCategory(ctx, e.CategoryID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("load category: %w", err)
	}
	if SystemManaged(*e, cat) {
		return shared.NewStateConflict("EXPENSE_SYSTEM_MANAGED",
			"a system-managed expense can only be removed through its owning subsystem", "")
	}
	return s.repo.SoftDelete(ctx, id)
}

// List returns non-deleted expenses matching the filters along with the
// total match count for pagination.
func (s *Service) List(ctx context.Context, req ListExpensesRequest) ([]Expense, int, error) {
	out, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Get returns a single expense.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Expense, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFound("expense", id.String())
		}
		return nil, err
	}
	return e, nil
}

// RecordFine writes a FINES expense on behalf of the invoice pricing engine,
// the sole writer of fine rows into the ledger.
func (s *Service) RecordFine(ctx context.Context, rec FineRecord) (*Expense, error) {
	cat, err := s.repo.CategoryByCode(ctx, CategoryCodeFines)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFound("expense category", CategoryCodeFines)
		}
		return nil, fmt.Errorf("load fines category: %w", err)
	}

	currency := rec.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	now := time.Now()
	e := Expense{
		ID:          uuid.New(),
		CategoryID:  cat.ID,
		Description: rec.Label,
		Amount:      rec.Amount,
		Currency:    currency,
		IncurredOn:  rec.IncurredOn,
		Branch:      rec.Branch,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("record fine expense: %w", err)
	}
	return &e, nil
}
