package payouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetcore/fleetcore/internal/expenses"
	"github.com/fleetcore/fleetcore/internal/platform/db"
	"github.com/fleetcore/fleetcore/internal/shared"
)

// ErrStaleVersion indicates the optimistic version check failed.
var ErrStaleVersion = errors.New("payouts: payout version is stale")

// Repository defines data access for payouts, their revenue inputs and the
// synchronized expense/payment rows.
type Repository interface {
	GetInvestor(ctx context.Context, id int64) (*Investor, error)
	RevenueByVehicle(ctx context.Context, investorID int64, from, to time.Time, branch *string) ([]VehicleRevenue, error)
	CreatePayoutAndExpense(ctx context.Context, p Payout, e expenses.Expense) error
	GetPayout(ctx context.Context, id uuid.UUID) (*Payout, error)
	ListPayouts(ctx context.Context, investorID *int64) ([]Payout, error)
	UpdatePayoutAndExpense(ctx context.Context, p Payout, expectedVersion int64) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status PayoutStatus, expectedVersion int64) error
	CancelPayoutAndExpense(ctx context.Context, id uuid.UUID, expenseID uuid.UUID, expectedVersion int64) error
	CreatePayment(ctx context.Context, pay Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
	AttachPayment(ctx context.Context, payoutID, paymentID uuid.UUID) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetInvestor(ctx context.Context, id int64) (*Investor, error) {
	var inv Investor
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, commission_percent FROM investors WHERE id = $1`, id).
		Scan(&inv.ID, &inv.Name, &inv.CommissionPercent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// RevenueByVehicle attributes issued and paid invoice totals to the
// investor's vehicles through bookings overlapping the period.
func (r *repository) RevenueByVehicle(ctx context.Context, investorID int64, from, to time.Time, branch *string) ([]VehicleRevenue, error) {
	query := `SELECT v.id, v.plate, COUNT(DISTINCT b.id), COALESCE(SUM(i.total), 0)
FROM vehicles v
JOIN bookings b ON b.vehicle_id = v.id
	AND b.status IN ('CONFIRMED', 'CHECKED_OUT', 'CHECKED_IN')
	AND b.start_date <= $3 AND b.end_date >= $2
JOIN invoices i ON i.booking_id = b.id AND i.status IN ('ISSUED', 'PAID')
WHERE v.investor_id = $1`
	args := []any{investorID, from, to}
	if branch != nil {
		query += ` AND v.branch = $4`
		args = append(args, *branch)
	}
	query += `
GROUP BY v.id, v.plate
ORDER BY SUM(i.total) DESC, v.id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VehicleRevenue
	for rows.Next() {
		var rec VehicleRevenue
		if err := rows.Scan(&rec.VehicleID, &rec.Plate, &rec.Bookings, &rec.Revenue); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const payoutColumns = `id, investor_id, period_from, period_to, total_revenue, commission_percent,
commission_amount, net_payout, breakdown, currency, status, expense_id, payment_id, version, created_at, updated_at`

func scanPayout(row pgx.Row) (*Payout, error) {
	var (
		p            Payout
		breakdownRaw []byte
	)
	err := row.Scan(&p.ID, &p.InvestorID, &p.PeriodFrom, &p.PeriodTo,
		&p.Totals.TotalRevenue, &p.Totals.CommissionPercent, &p.Totals.CommissionAmount, &p.Totals.NetPayout,
		&breakdownRaw, &p.Currency, &p.Status, &p.ExpenseID, &p.PaymentID, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(breakdownRaw, &p.Totals.Breakdown); err != nil {
		return nil, fmt.Errorf("payouts: decode breakdown: %w", err)
	}
	return &p, nil
}

// CreatePayoutAndExpense inserts the payout row and its generated expense in
// one repeatable-read transaction: the payout must never exist without its
// expense.
func (r *repository) CreatePayoutAndExpense(ctx context.Context, p Payout, e expenses.Expense) error {
	breakdownRaw, err := json.Marshal(p.Totals.Breakdown)
	if err != nil {
		return fmt.Errorf("payouts: encode breakdown: %w", err)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO payouts (`+payoutColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			p.ID, p.InvestorID, p.PeriodFrom, p.PeriodTo,
			p.Totals.TotalRevenue, p.Totals.CommissionPercent, p.Totals.CommissionAmount, p.Totals.NetPayout,
			breakdownRaw, p.Currency, p.Status, p.ExpenseID, p.PaymentID, p.Version, p.CreatedAt, p.UpdatedAt); err != nil {
			return fmt.Errorf("insert payout: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO expenses
(id, category_id, description, amount, currency, incurred_on, branch, salary_id, payout_id, deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			e.ID, e.CategoryID, e.Description, e.Amount, e.Currency, e.IncurredOn,
			e.Branch, e.SalaryID, e.PayoutID, e.Deleted, e.CreatedAt, e.UpdatedAt); err != nil {
			return fmt.Errorf("insert payout expense: %w", err)
		}
		return nil
	})
}

func (r *repository) GetPayout(ctx context.Context, id uuid.UUID) (*Payout, error) {
	return scanPayout(r.pool.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id))
}

func (r *repository) ListPayouts(ctx context.Context, investorID *int64) ([]Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts`
	var args []any
	if investorID != nil {
		query += ` WHERE investor_id = $1`
		args = append(args, *investorID)
	}
	query += ` ORDER BY period_to DESC, created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdatePayoutAndExpense rewrites the snapshot and moves the linked expense's
// amount and date with it, guarded by the version counter, in one
// transaction.
func (r *repository) UpdatePayoutAndExpense(ctx context.Context, p Payout, expectedVersion int64) error {
	breakdownRaw, err := json.Marshal(p.Totals.Breakdown)
	if err != nil {
		return fmt.Errorf("payouts: encode breakdown: %w", err)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE payouts
SET period_from=$2, period_to=$3, total_revenue=$4, commission_percent=$5, commission_amount=$6,
net_payout=$7, breakdown=$8, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$9`,
			p.ID, p.PeriodFrom, p.PeriodTo,
			p.Totals.TotalRevenue, p.Totals.CommissionPercent, p.Totals.CommissionAmount, p.Totals.NetPayout,
			breakdownRaw, expectedVersion)
		if err != nil {
			return fmt.Errorf("update payout: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrStaleVersion
		}
		if _, err := tx.Exec(ctx,
			`UPDATE expenses SET amount=$2, incurred_on=$3, updated_at=NOW() WHERE id=$1`,
			p.ExpenseID, p.Totals.NetPayout, p.PeriodTo); err != nil {
			return fmt.Errorf("propagate payout expense: %w", err)
		}
		return nil
	})
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status PayoutStatus, expectedVersion int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE payouts SET status=$2, version=version+1, updated_at=NOW() WHERE id=$1 AND version=$3`,
		id, status, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleVersion
	}
	return nil
}

// CancelPayoutAndExpense sets the payout CANCELLED and soft-deletes the
// linked expense in one transaction. The payment row is deliberately left
// untouched.
func (r *repository) CancelPayoutAndExpense(ctx context.Context, id uuid.UUID, expenseID uuid.UUID, expectedVersion int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE payouts SET status=$2, version=version+1, updated_at=NOW() WHERE id=$1 AND version=$3`,
			id, StatusCancelled, expectedVersion)
		if err != nil {
			return fmt.Errorf("cancel payout: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrStaleVersion
		}
		if _, err := tx.Exec(ctx,
			`UPDATE expenses SET deleted=TRUE, updated_at=NOW() WHERE id=$1 AND NOT deleted`,
			expenseID); err != nil {
			return fmt.Errorf("soft delete payout expense: %w", err)
		}
		return nil
	})
}

func (r *repository) CreatePayment(ctx context.Context, pay Payment) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO payments (id, payout_id, amount, currency, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		pay.ID, pay.PayoutID, pay.Amount, pay.Currency, pay.Status, pay.CreatedAt)
	return err
}

func (r *repository) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	var pay Payment
	err := r.pool.QueryRow(ctx,
		`SELECT id, payout_id, amount, currency, status, created_at FROM payments WHERE id = $1`, id).
		Scan(&pay.ID, &pay.PayoutID, &pay.Amount, &pay.Currency, &pay.Status, &pay.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &pay, nil
}

func (r *repository) AttachPayment(ctx context.Context, payoutID, paymentID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE payouts SET payment_id=$2, updated_at=NOW() WHERE id=$1`, payoutID, paymentID)
	return err
}
