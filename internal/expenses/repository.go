package expenses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetcore/fleetcore/internal/shared"
)

// Repository defines data access for the expense ledger.
type Repository interface {
	Create(ctx context.Context, e Expense) error
	Get(ctx context.Context, id uuid.UUID) (*Expense, error)
	Update(ctx context.Context, e Expense) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, req ListExpensesRequest) ([]Expense, error)
	Count(ctx context.Context, req ListExpensesRequest) (int, error)
	GetCategory(ctx context.Context, id int64) (*Category, error)
	CategoryByCode(ctx context.Context, code string) (*Category, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const expenseColumns = `id, category_id, description, amount, currency, incurred_on, branch, salary_id, payout_id, deleted, created_at, updated_at`

func scanExpense(row pgx.Row) (*Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.CategoryID, &e.Description, &e.Amount, &e.Currency,
		&e.IncurredOn, &e.Branch, &e.SalaryID, &e.PayoutID, &e.Deleted, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *repository) Create(ctx context.Context, e Expense) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO expenses (`+expenseColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.CategoryID, e.Description, e.Amount, e.Currency, e.IncurredOn,
		e.Branch, e.SalaryID, e.PayoutID, e.Deleted, e.CreatedAt, e.UpdatedAt)
	return err
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*Expense, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id)
	return scanExpense(row)
}

func (r *repository) Update(ctx context.Context, e Expense) error {
	tag, err := r.pool.Exec(ctx, `UPDATE expenses
SET category_id=$2, description=$3, amount=$4, incurred_on=$5, branch=$6, updated_at=$7
WHERE id=$1 AND NOT deleted`,
		e.ID, e.CategoryID, e.Description, e.Amount, e.IncurredOn, e.Branch, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE expenses SET deleted = TRUE, updated_at = NOW() WHERE id = $1 AND NOT deleted`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, req ListExpensesRequest) ([]Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE NOT deleted`
	var args []interface{}
	argPos := 1

	if req.From != nil {
		query += fmt.Sprintf(" AND incurred_on >= $%d", argPos)
		args = append(args, *req.From)
		argPos++
	}
	if req.To != nil {
		query += fmt.Sprintf(" AND incurred_on <= $%d", argPos)
		args = append(args, *req.To)
		argPos++
	}
	if req.CategoryID != nil {
		query += fmt.Sprintf(" AND category_id = $%d", argPos)
		args = append(args, *req.CategoryID)
		argPos++
	}
	if req.Branch != nil {
		query += fmt.Sprintf(" AND branch = $%d", argPos)
		args = append(args, *req.Branch)
		argPos++
	}
	query += " ORDER BY incurred_on DESC, id DESC"
	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
		args = append(args, req.Limit, req.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.CategoryID, &e.Description, &e.Amount, &e.Currency,
			&e.IncurredOn, &e.Branch, &e.SalaryID, &e.PayoutID, &e.Deleted, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) Count(ctx context.Context, req ListExpensesRequest) (int, error) {
	query := `SELECT COUNT(*) FROM expenses WHERE NOT deleted`
	var args []interface{}
	argPos := 1

	if req.From != nil {
		query += fmt.Sprintf(" AND incurred_on >= $%d", argPos)
		args = append(args, *req.From)
		argPos++
	}
	if req.To != nil {
		query += fmt.Sprintf(" AND incurred_on <= $%d", argPos)
		args = append(args, *req.To)
		argPos++
	}
	if req.CategoryID != nil {
		query += fmt.Sprintf(" AND category_id = $%d", argPos)
		args = append(args, *req.CategoryID)
		argPos++
	}
	if req.Branch != nil {
		query += fmt.Sprintf(" AND branch = $%d", argPos)
		args = append(args, *req.Branch)
	}

	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repository) GetCategory(ctx context.Context, id int64) (*Category, error) {
	var c Category
	var kind *string
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, kind FROM expense_categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Code, &c.Name, &kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if kind != nil {
		c.Kind = CategoryKind(*kind)
	}
	return &c, nil
}

func (r *repository) CategoryByCode(ctx context.Context, code string) (*Category, error) {
	var c Category
	var kind *string
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, kind FROM expense_categories WHERE code = $1`, code).
		Scan(&c.ID, &c.Code, &c.Name, &kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if kind != nil {
		c.Kind = CategoryKind(*kind)
	}
	return &c, nil
}
