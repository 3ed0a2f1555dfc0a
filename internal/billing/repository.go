package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetcore/fleetcore/internal/shared"
)

var (
	// ErrDuplicateInvoice indicates a booking already has an invoice.
	ErrDuplicateInvoice = errors.New("billing: booking already invoiced")
	// ErrStaleVersion indicates the optimistic version check failed.
	ErrStaleVersion = errors.New("billing: invoice version is stale")
)

// Repository defines data access for invoices and their booking inputs.
type Repository interface {
	GetBooking(ctx context.Context, id int64) (*Booking, error)
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	GetInvoiceByBooking(ctx context.Context, bookingID int64) (*Invoice, error)
	NextInvoiceSequence(ctx context.Context, issueDate time.Time) (int, error)
	CreateInvoice(ctx context.Context, inv Invoice) (int64, error)
	ReplaceItems(ctx context.Context, inv Invoice, expectedVersion int64) error
	UpdateStatus(ctx context.Context, id int64, status InvoiceStatus, expectedVersion int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	var (
		b          Booking
		chargesRaw []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT id, vehicle_id, branch, start_date, end_date, rental_type,
daily_rate, weekly_rate, monthly_rate, discount_amount, deposit_amount, COALESCE(extra_charges, '[]')
FROM bookings WHERE id = $1`, id).Scan(
		&b.ID, &b.VehicleID, &b.Branch, &b.StartDate, &b.EndDate, &b.RentalType,
		&b.DailyRate, &b.WeeklyRate, &b.MonthlyRate, &b.DiscountAmount, &b.DepositAmount, &chargesRaw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(chargesRaw, &b.Charges); err != nil {
		return nil, fmt.Errorf("billing: decode extra charges: %w", err)
	}
	return &b, nil
}

const invoiceColumns = `id, number, booking_id, issue_date, due_date, items, subtotal, tax_amount, total, currency, status, fine_labels, version, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var (
		inv      Invoice
		itemsRaw []byte
	)
	err := row.Scan(&inv.ID, &inv.Number, &inv.BookingID, &inv.IssueDate, &inv.DueDate,
		&itemsRaw, &inv.Subtotal, &inv.TaxAmount, &inv.Total, &inv.Currency, &inv.Status,
		&inv.FineLabels, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(itemsRaw, &inv.Items); err != nil {
		return nil, fmt.Errorf("billing: decode items: %w", err)
	}
	return &inv, nil
}

func (r *repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
}

func (r *repository) GetInvoiceByBooking(ctx context.Context, bookingID int64) (*Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE booking_id = $1`, bookingID))
}

// NextInvoiceSequence finds the highest sequence already issued for the day
// and returns the next one. The sequence resets daily via the number prefix.
func (r *repository) NextInvoiceSequence(ctx context.Context, issueDate time.Time) (int, error) {
	prefix := "INV-" + issueDate.Format("20060102") + "-%"
	var max *int
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(CAST(RIGHT(number, 4) AS INTEGER)) FROM invoices WHERE number LIKE $1`, prefix).Scan(&max)
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 1, nil
	}
	return *max + 1, nil
}

func (r *repository) CreateInvoice(ctx context.Context, inv Invoice) (int64, error) {
	itemsRaw, err := json.Marshal(inv.Items)
	if err != nil {
		return 0, fmt.Errorf("billing: encode items: %w", err)
	}
	var id int64
	err = r.pool.QueryRow(ctx, `INSERT INTO invoices (number, booking_id, issue_date, due_date, items,
subtotal, tax_amount, total, currency, status, fine_labels, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`,
		inv.Number, inv.BookingID, inv.IssueDate, inv.DueDate, itemsRaw,
		inv.Subtotal, inv.TaxAmount, inv.Total, inv.Currency, inv.Status,
		inv.FineLabels, inv.Version, inv.CreatedAt, inv.UpdatedAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateInvoice
		}
		return 0, err
	}
	return id, nil
}

// ReplaceItems swaps the item ledger and derived totals in one statement,
// guarded by the optimistic version counter.
func (r *repository) ReplaceItems(ctx context.Context, inv Invoice, expectedVersion int64) error {
	itemsRaw, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("billing: encode items: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE invoices
SET items=$2, subtotal=$3, tax_amount=$4, total=$5, fine_labels=$6, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$7`,
		inv.ID, itemsRaw, inv.Subtotal, inv.TaxAmount, inv.Total, inv.FineLabels, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleVersion
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status InvoiceStatus, expectedVersion int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET status=$2, version=version+1, updated_at=NOW() WHERE id=$1 AND version=$3`,
		id, status, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleVersion
	}
	return nil
}
