package pnl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the read queries the aggregation needs. The three reads
// are independent and safe to issue concurrently.
type Repository interface {
	InvoicesInWindow(ctx context.Context, from, to time.Time) ([]InvoiceRecord, error)
	ExpensesInWindow(ctx context.Context, from, to time.Time, branch *string) ([]ExpenseRecord, error)
	MaintenanceInWindow(ctx context.Context, from, to time.Time, branch *string) ([]MaintenanceRecord, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// InvoicesInWindow returns issued and paid invoices with the owning booking's
// branch. Branch filtering happens post-query in the service because the
// branch lives on the booking, not the invoice.
func (r *repository) InvoicesInWindow(ctx context.Context, from, to time.Time) ([]InvoiceRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.issue_date, i.total, i.items, b.branch
FROM invoices i
JOIN bookings b ON b.id = i.booking_id
WHERE i.issue_date BETWEEN $1 AND $2 AND i.status IN ('ISSUED', 'PAID')
ORDER BY i.issue_date`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InvoiceRecord
	for rows.Next() {
		var (
			rec      InvoiceRecord
			itemsRaw []byte
		)
		if err := rows.Scan(&rec.IssueDate, &rec.Total, &itemsRaw, &rec.Branch); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(itemsRaw, &rec.Items); err != nil {
			return nil, fmt.Errorf("pnl: decode invoice items: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repository) ExpensesInWindow(ctx context.Context, from, to time.Time, branch *string) ([]ExpenseRecord, error) {
	query := `SELECT e.amount, e.incurred_on, e.branch, c.code, c.name, c.kind, e.salary_id IS NOT NULL
FROM expenses e
LEFT JOIN expense_categories c ON c.id = e.category_id
WHERE e.incurred_on BETWEEN $1 AND $2 AND e.deleted = FALSE`
	args := []any{from, to}
	if branch != nil {
		query += ` AND e.branch = $3`
		args = append(args, *branch)
	}
	query += ` ORDER BY e.incurred_on`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExpenseRecord
	for rows.Next() {
		var rec ExpenseRecord
		if err := rows.Scan(&rec.Amount, &rec.IncurredOn, &rec.Branch,
			&rec.CategoryCode, &rec.CategoryName, &rec.CategoryKind, &rec.SalaryLinked); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repository) MaintenanceInWindow(ctx context.Context, from, to time.Time, branch *string) ([]MaintenanceRecord, error) {
	query := `SELECT type, cost, service_date, branch
FROM maintenance_records
WHERE service_date BETWEEN $1 AND $2 AND status IN ('COMPLETED', 'IN_PROGRESS')`
	args := []any{from, to}
	if branch != nil {
		query += ` AND branch = $3`
		args = append(args, *branch)
	}
	query += ` ORDER BY service_date`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MaintenanceRecord
	for rows.Next() {
		var rec MaintenanceRecord
		if err := rows.Scan(&rec.Type, &rec.Cost, &rec.ServiceDate, &rec.Branch); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
