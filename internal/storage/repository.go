// Package storage is the SQLite implementation of the store ports.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"budgeteer/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Fixed-width fractional seconds keep the stored strings in
// lexicographic order, which the occurred_at range predicates rely on.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func decodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(tsLayout, s)
}

func encodeCategories(cats map[core.Bucket]core.Allocation) (string, error) {
	if cats == nil {
		return "{}", nil
	}
	flat := make(map[string]int64, len(cats))
	for bucket, alloc := range cats {
		flat[string(bucket)] = alloc.Budgeted.Cents
	}
	raw, err := json.Marshal(flat)
	if err != nil {
		return "", fmt.Errorf("marshal categories: %w", err)
	}
	return string(raw), nil
}

func decodeCategories(raw string) (map[core.Bucket]core.Allocation, error) {
	flat := make(map[string]int64)
	if err := json.Unmarshal([]byte(raw), &flat); err != nil {
		return nil, fmt.Errorf("unmarshal categories: %w", err)
	}
	cats := make(map[core.Bucket]core.Allocation, len(flat))
	for name, cents := range flat {
		cats[core.Bucket(name)] = core.Allocation{Budgeted: core.Money{Cents: cents}}
	}
	return cats, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, userID string, b core.Budget) error {
	cats, err := encodeCategories(b.Categories)
	if err != nil {
		return err
	}
	var endDate sql.NullString
	if !b.EndDate.IsZero() {
		endDate = sql.NullString{String: b.EndDate.String(), Valid: true}
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO budgets (id, user_id, space, name, total_cents, period, start_date, end_date, categories, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, userID, string(b.Space), b.Name, b.TotalBudget.Cents, string(b.Period),
		b.StartDate.String(), endDate, cats, encodeTime(b.CreatedAt), encodeTime(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, userID string, b core.Budget) error {
	cats, err := encodeCategories(b.Categories)
	if err != nil {
		return err
	}
	var endDate sql.NullString
	if !b.EndDate.IsZero() {
		endDate = sql.NullString{String: b.EndDate.String(), Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
	UPDATE budgets SET name = ?, total_cents = ?, period = ?, start_date = ?, end_date = ?, categories = ?, updated_at = ?
	WHERE user_id = ? AND id = ?`,
		b.Name, b.TotalBudget.Cents, string(b.Period), b.StartDate.String(), endDate, cats,
		encodeTime(b.UpdatedAt), userID, b.ID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID string, space core.Space, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM budgets WHERE user_id = ? AND space = ? AND id = ?`,
		userID, string(space), id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return requireRow(res)
}

const budgetColumns = `id, space, name, total_cents, period, start_date, end_date, categories, created_at, updated_at`

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID string, space core.Space, id string) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND space = ? AND id = ?`,
		userID, string(space), id)
	b, err := scanBudget(row)
	if err == sql.ErrNoRows {
		return core.Budget{}, core.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string, space core.Space) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND space = ? ORDER BY start_date`,
		userID, string(space))
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b                    core.Budget
		space, period        string
		startDate            string
		endDate              sql.NullString
		cats                 string
		createdAt, updatedAt string
	)
	err := row.Scan(&b.ID, &space, &b.Name, &b.TotalBudget.Cents, &period,
		&startDate, &endDate, &cats, &createdAt, &updatedAt)
	if err != nil {
		return core.Budget{}, err
	}
	b.Space = core.Space(space)
	b.Period = core.Period(period)
	if b.StartDate, err = core.ParseDate(startDate); err != nil {
		return core.Budget{}, err
	}
	if endDate.Valid {
		if b.EndDate, err = core.ParseDate(endDate.String); err != nil {
			return core.Budget{}, err
		}
	}
	if b.Categories, err = decodeCategories(cats); err != nil {
		return core.Budget{}, err
	}
	if b.CreatedAt, err = decodeTime(createdAt); err != nil {
		return core.Budget{}, err
	}
	if b.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, userID string, t core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO transactions (id, user_id, space, type, amount_cents, category, description, occurred_at, budget_id, budget_category, mini_budget_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, userID, string(t.Space), string(t.Type), t.Amount.Cents, t.Category, t.Description,
		encodeTime(t.OccurredAt), nullable(t.BudgetID), nullable(string(t.BudgetCategory)), nullable(t.MiniBudgetID),
		encodeTime(t.CreatedAt), encodeTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID string, space core.Space, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE user_id = ? AND space = ? AND id = ?`,
		userID, string(space), id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, space core.Space, from, to time.Time) ([]core.Transaction, error) {
	query := `SELECT id, space, type, amount_cents, category, description, occurred_at, budget_id, budget_category, mini_budget_id, created_at, updated_at
	FROM transactions WHERE user_id = ? AND space = ?`
	args := []any{userID, string(space)}
	if !from.IsZero() {
		query += ` AND occurred_at >= ?`
		args = append(args, encodeTime(from))
	}
	if !to.IsZero() {
		query += ` AND occurred_at <= ?`
		args = append(args, encodeTime(to))
	}
	query += ` ORDER BY occurred_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t                              core.Transaction
			space, txType                  string
			occurredAt                     string
			budgetID, bucket, miniBudgetID sql.NullString
			createdAt, updatedAt           string
		)
		err := rows.Scan(&t.ID, &space, &txType, &t.Amount.Cents, &t.Category, &t.Description,
			&occurredAt, &budgetID, &bucket, &miniBudgetID, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Space = core.Space(space)
		t.Type = core.TransactionType(txType)
		t.BudgetID = budgetID.String
		t.BudgetCategory = core.Bucket(bucket.String)
		t.MiniBudgetID = miniBudgetID.String
		if t.OccurredAt, err = decodeTime(occurredAt); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, err
		}
		if t.UpdatedAt, err = decodeTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateMiniBudget(ctx context.Context, userID string, mb core.MiniBudget) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO mini_budgets (id, user_id, budget_id, name, amount_cents, category)
	VALUES (?, ?, ?, ?, ?, ?)`,
		mb.ID, userID, mb.BudgetID, mb.Name, mb.Amount.Cents, string(mb.Category))
	if err != nil {
		return fmt.Errorf("insert mini budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListMiniBudgets(ctx context.Context, userID string, budgetID string) ([]core.MiniBudget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, budget_id, name, amount_cents, category FROM mini_budgets WHERE user_id = ? AND budget_id = ?`,
		userID, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list mini budgets: %w", err)
	}
	defer rows.Close()

	var out []core.MiniBudget
	for rows.Next() {
		var (
			mb       core.MiniBudget
			category string
		)
		if err := rows.Scan(&mb.ID, &mb.BudgetID, &mb.Name, &mb.Amount.Cents, &category); err != nil {
			return nil, fmt.Errorf("scan mini budget: %w", err)
		}
		mb.Category = core.Bucket(category)
		out = append(out, mb)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteMiniBudgetsForBudget(ctx context.Context, userID string, budgetID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mini_budgets WHERE user_id = ? AND budget_id = ?`,
		userID, budgetID)
	if err != nil {
		return fmt.Errorf("delete mini budgets: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateImported(ctx context.Context, userID string, batch []core.ImportedTransaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, it := range batch {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO imported_transactions (id, user_id, space, bank_account_id, amount_cents, direction, description, merchant, occurred_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, userID, string(it.Space), it.BankAccountID, it.Amount.Cents, string(it.Direction),
			it.Description, it.Merchant, encodeTime(it.OccurredAt), string(it.Status))
		if err != nil {
			return fmt.Errorf("insert imported transaction: %w", err)
		}
	}
	return tx.Commit()
}

const importedColumns = `id, space, bank_account_id, amount_cents, direction, description, merchant, occurred_at, status, reconciled_at`

func (r *SQLiteRepository) GetImported(ctx context.Context, userID string, space core.Space, id string) (core.ImportedTransaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+importedColumns+` FROM imported_transactions WHERE user_id = ? AND space = ? AND id = ?`,
		userID, string(space), id)
	it, err := scanImported(row)
	if err == sql.ErrNoRows {
		return core.ImportedTransaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.ImportedTransaction{}, fmt.Errorf("get imported transaction: %w", err)
	}
	return it, nil
}

func (r *SQLiteRepository) ListImported(ctx context.Context, userID string, space core.Space, status core.ImportStatus) ([]core.ImportedTransaction, error) {
	query := `SELECT ` + importedColumns + ` FROM imported_transactions WHERE user_id = ? AND space = ?`
	args := []any{userID, string(space)}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY occurred_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list imported transactions: %w", err)
	}
	defer rows.Close()

	var out []core.ImportedTransaction
	for rows.Next() {
		it, err := scanImported(rows)
		if err != nil {
			return nil, fmt.Errorf("scan imported transaction: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// TransitionImported is a conditional write: the status predicate in the
// WHERE clause makes check and update one atomic statement, so two
// concurrent reconcile calls cannot both claim the record.
func (r *SQLiteRepository) TransitionImported(ctx context.Context, userID string, space core.Space, id string, from, to core.ImportStatus, reconciledAt time.Time) error {
	var recAt sql.NullString
	if !reconciledAt.IsZero() {
		recAt = sql.NullString{String: encodeTime(reconciledAt), Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
	UPDATE imported_transactions SET status = ?, reconciled_at = ?
	WHERE user_id = ? AND space = ? AND id = ? AND status = ?`,
		string(to), recAt, userID, string(space), id, string(from))
	if err != nil {
		return fmt.Errorf("transition imported transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		// Distinguish a missing record from a lost race.
		if _, err := r.GetImported(ctx, userID, space, id); err != nil {
			return err
		}
		return core.ErrAlreadyFinalized
	}
	return nil
}

func scanImported(row rowScanner) (core.ImportedTransaction, error) {
	var (
		it               core.ImportedTransaction
		space, direction string
		status           string
		occurredAt       string
		reconciledAt     sql.NullString
	)
	err := row.Scan(&it.ID, &space, &it.BankAccountID, &it.Amount.Cents, &direction,
		&it.Description, &it.Merchant, &occurredAt, &status, &reconciledAt)
	if err != nil {
		return core.ImportedTransaction{}, err
	}
	it.Space = core.Space(space)
	it.Direction = core.Direction(direction)
	it.Status = core.ImportStatus(status)
	if it.OccurredAt, err = decodeTime(occurredAt); err != nil {
		return core.ImportedTransaction{}, err
	}
	if reconciledAt.Valid {
		if it.ReconciledAt, err = decodeTime(reconciledAt.String); err != nil {
			return core.ImportedTransaction{}, err
		}
	}
	return it, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
