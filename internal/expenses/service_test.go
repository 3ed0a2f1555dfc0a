package expenses

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fleetcore/fleetcore/internal/shared"
)

type fakeRepo struct {
	expenses   map[uuid.UUID]Expense
	categories map[int64]Category
	createErr  error
}

func newFakeRepo() *fakeRepo {
	r := &fakeRepo{
		expenses:   make(map[uuid.UUID]Expense),
		categories: make(map[int64]Category),
	}
	r.categories[1] = Category{ID: 1, Code: CategoryCodeFines, Name: "Fines", Kind: KindCOGS}
	r.categories[2] = Category{ID: 2, Code: CategoryCodeSalaries, Name: "Salaries", Kind: KindOPEX}
	r.categories[3] = Category{ID: 3, Code: CategoryCodeInvestorPayouts, Name: "Investor Payouts", Kind: KindOPEX}
	r.categories[4] = Category{ID: 4, Code: "FUEL", Name: "Fuel", Kind: KindCOGS}
	r.categories[5] = Category{ID: 5, Code: CategoryCodeRent, Name: "Rent", Kind: KindOPEX}
	return r
}

func (r *fakeRepo) Create(_ context.Context, e Expense) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.expenses[e.ID] = e
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id uuid.UUID) (*Expense, error) {
	e, ok := r.expenses[id]
	if !ok || e.Deleted {
		return nil, shared.ErrNotFound
	}
	copied := e
	return &copied, nil
}

func (r *fakeRepo) Update(_ context.Context, e Expense) error {
	if _, ok := r.expenses[e.ID]; !ok {
		return shared.ErrNotFound
	}
	r.expenses[e.ID] = e
	return nil
}

func (r *fakeRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	e, ok := r.expenses[id]
	if !ok {
		return shared.ErrNotFound
	}
	e.Deleted = true
	r.expenses[id] = e
	return nil
}

func (r *fakeRepo) List(_ context.Context, req ListExpensesRequest) ([]Expense, error) {
	out := make([]Expense, 0)
	for _, e := range r.expenses {
		if e.Deleted {
			continue
		}
		if req.CategoryID != nil && e.CategoryID != *req.CategoryID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeRepo) Count(ctx context.Context, req ListExpensesRequest) (int, error) {
	out, err := r.List(ctx, req)
	if err != nil {
		return 0, err
	}
	return len(out), nil
}

func (r *fakeRepo) GetCategory(_ context.Context, id int64) (*Category, error) {
	c, ok := r.categories[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := c
	return &copied, nil
}

func (r *fakeRepo) CategoryByCode(_ context.Context, code string) (*Category, error) {
	for _, c := range r.categories {
		if c.Code == code {
			copied := c
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func TestCreateExpense(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, "AED")

	e, err := svc.Create(context.Background(), CreateExpenseRequest{
		CategoryID:  4,
		Description: "Refuel fleet",
		Amount:      320.50,
		IncurredOn:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, "AED", e.Currency)
	require.Equal(t, 320.50, e.Amount)
	require.Len(t, repo.expenses, 1)
}

func TestCreateExpenseRejectsReservedCategories(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, "AED")

	for _, categoryID := range []int64{2, 3} {
		_, err := svc.Create(context.Background(), CreateExpenseRequest{
			CategoryID:  categoryID,
			Description: "manual entry",
			Amount:      100,
			IncurredOn:  time.Now(),
		})
		var verr *shared.ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, "EXPENSE_RESERVED_CATEGORY", verr.Code)
	}
	require.Empty(t, repo.expenses)
}

func TestCreateExpenseUnknownCategory(t *testing.T) {
	svc := NewService(newFakeRepo(), "AED")

	_, err := svc.Create(context.Background(), CreateExpenseRequest{
		CategoryID:  999,
		Description: "ghost",
		Amount:      10,
		IncurredOn:  time.Now(),
	})
	var nf *shared.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestUpdateSystemManagedExpenseGuards(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, "AED")

	salaryID := int64(77)
	id := uuid.New()
	repo.expenses[id] = Expense{
		ID:          id,
		CategoryID:  4,
		Description: "March payroll",
		Amount:      5000,
		Currency:    "AED",
		IncurredOn:  time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		SalaryID:    &salaryID,
	}

	newAmount := 6000.0
	_, err := svc.Update(context.Background(), id, UpdateExpenseRequest{Amount: &newAmount})
	var conflict *shared.StateConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "EXPENSE_SYSTEM_MANAGED", conflict.Code)

	// Description edits stay allowed on managed rows.
	desc := "March payroll (adjusted)"
	updated, err := svc.Update(context.Background(), id, UpdateExpenseRequest{Description: &desc})
	require.NoError(t, err)
	require.Equal(t, desc, updated.Description)
	require.Equal(t, 5000.0, updated.Amount)
}

func TestDeleteSystemManagedExpenseRejected(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, "AED")

	payoutID := uuid.New()
	id := uuid.New()
	repo.expenses[id] = Expense{
		ID:         id,
		CategoryID: 3,
		Amount:     8000,
		PayoutID:   &payoutID,
	}

	err := svc.Delete(context.Background(), id)
	var conflict *shared.StateConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "EXPENSE_SYSTEM_MANAGED", conflict.Code)
	require.False(t, repo.expenses[id].Deleted)
}

func TestDeleteSoftDeletes(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, "AED")

	id := uuid.New()
	repo.expenses[id] = Expense{ID: id, CategoryID: 4, Amount: 50}

	require.NoError(t, svc.Delete(context.Background(), id))
	require.True(t, repo.expenses[id].Deleted)

	_, err := svc.Get(context.Background(), id)
	var nf *shared.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestRecordFine(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, "AED")

	branch := "Dubai Marina"
	e, err := svc.RecordFine(context.Background(), FineRecord{
		Label:      "Traffic Fine - Speeding",
		Amount:     500,
		IncurredOn: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		Branch:     &branch,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), e.CategoryID)
	require.Equal(t, "Traffic Fine - Speeding", e.Description)
	require.Equal(t, 500.0, e.Amount)
	require.Equal(t, "AED", e.Currency)
	require.Equal(t, &branch, e.Branch)
}

func TestSystemManaged(t *testing.T) {
	salaryID := int64(1)
	payoutID := uuid.New()
	payrollCat := &Category{Code: CategoryCodeSalaries}
	fuelCat := &Category{Code: "FUEL"}

	require.True(t, SystemManaged(Expense{SalaryID: &salaryID}, fuelCat))
	require.True(t, SystemManaged(Expense{PayoutID: &payoutID}, fuelCat))
	require.True(t, SystemManaged(Expense{}, payrollCat))
	require.False(t, SystemManaged(Expense{}, fuelCat))
	require.False(t, SystemManaged(Expense{}, nil))
}
