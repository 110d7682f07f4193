package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"spendcraft/internal/core"
	"spendcraft/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements store.Store on a single SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ store.Store     = (*SQLiteRepository)(nil)
	_ store.ChangeLog = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer at a time; SQLite serialises writes anyway
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const transactionColumns = `id, amount_minor, timestamp_utc_millis, note, category_id, account_id, is_income`

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY timestamp_utc_millis, id`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return scanTransactions(rows)
}

func (r *SQLiteRepository) ListTransactionsByCategory(ctx context.Context, categoryID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE category_id = ? ORDER BY timestamp_utc_millis, id`,
		categoryID)
	if err != nil {
		return nil, fmt.Errorf("list transactions for category %s: %w", categoryID, err)
	}
	return scanTransactions(rows)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	txs, err := scanTransactions(rows)
	if err != nil {
		return core.Transaction{}, err
	}
	if len(txs) == 0 {
		return core.Transaction{}, store.ErrNotFound
	}
	return txs[0], nil
}

func (r *SQLiteRepository) UpsertTransaction(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			amount_minor = excluded.amount_minor,
			timestamp_utc_millis = excluded.timestamp_utc_millis,
			note = excluded.note,
			category_id = excluded.category_id,
			account_id = excluded.account_id,
			is_income = excluded.is_income`,
		tx.ID, tx.Amount.Minor, tx.TimestampUTCMillis, tx.Note,
		nullString(tx.CategoryID), nullString(tx.AccountID), tx.IsIncome)
	if err != nil {
		return fmt.Errorf("upsert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"amount_minor", tx.Amount.Minor,
		"category_id", tx.CategoryID)
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectAffected(res)
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		var (
			tx       core.Transaction
			category sql.NullString
			account  sql.NullString
		)
		if err := rows.Scan(&tx.ID, &tx.Amount.Minor, &tx.TimestampUTCMillis, &tx.Note,
			&category, &account, &tx.IsIncome); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.CategoryID = category.String
		tx.AccountID = account.String
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, icon FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx, `SELECT id, name, icon FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Icon)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, store.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %s: %w", id, err)
	}
	return c, nil
}

func (r *SQLiteRepository) UpsertCategory(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, icon) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, icon = excluded.icon`,
		c.ID, c.Name, c.Icon)
	if err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

// DeleteCategory removes the category row only; transactions keep their
// category_id.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectAffected(res)
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, is_default FROM accounts ORDER BY is_default DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.IsDefault); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertAccount(ctx context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if a.IsDefault {
			if _, err := tx.ExecContext(ctx, `UPDATE accounts SET is_default = 0 WHERE is_default = 1`); err != nil {
				return fmt.Errorf("clear default account: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO accounts (id, name, is_default) VALUES (?, ?, ?)`,
			a.ID, a.Name, a.IsDefault); err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) DefaultAccount(ctx context.Context) (core.Account, error) {
	var a core.Account
	err := r.db.QueryRowContext(ctx, `SELECT id, name, is_default FROM accounts WHERE is_default = 1 LIMIT 1`).
		Scan(&a.ID, &a.Name, &a.IsDefault)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, store.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get default account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) SetDefaultAccount(ctx context.Context, id string) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("look up account: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE accounts SET is_default = 0 WHERE is_default = 1`); err != nil {
			return fmt.Errorf("clear default account: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE accounts SET is_default = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("mark default account: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Default account switched", "account_id", id)
	return nil
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		var isDefault bool
		err := tx.QueryRowContext(ctx, `SELECT is_default FROM accounts WHERE id = ?`, id).Scan(&isDefault)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("look up account: %w", err)
		}
		if isDefault {
			return store.ErrDefaultAccount
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT category_id, monthly_limit_minor FROM budgets ORDER BY category_id`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()
	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.CategoryID, &b.MonthlyLimit.Minor); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, categoryID string) (core.Budget, bool, error) {
	b := core.Budget{CategoryID: categoryID}
	err := r.db.QueryRowContext(ctx, `SELECT monthly_limit_minor FROM budgets WHERE category_id = ?`, categoryID).
		Scan(&b.MonthlyLimit.Minor)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, false, nil
	}
	if err != nil {
		return core.Budget{}, false, fmt.Errorf("get budget %s: %w", categoryID, err)
	}
	return b, true, nil
}

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (category_id, monthly_limit_minor) VALUES (?, ?)
		ON CONFLICT (category_id) DO UPDATE SET monthly_limit_minor = excluded.monthly_limit_minor`,
		b.CategoryID, b.MonthlyLimit.Minor)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, categoryID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE category_id = ?`, categoryID); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

// RecordIfAbsent relies on the composite primary key: a conflicting insert
// affects no rows, which means the alert was already delivered.
func (r *SQLiteRepository) RecordIfAbsent(ctx context.Context, a core.BudgetAlert) (bool, error) {
	if err := a.Validate(); err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_alerts (category_id, level, month_key) VALUES (?, ?, ?)
		ON CONFLICT (category_id, level, month_key) DO NOTHING`,
		a.CategoryID, int(a.Level), a.Month.String())
	if err != nil {
		return false, fmt.Errorf("record budget alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record budget alert: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) FiredLevels(ctx context.Context, categoryID string, month core.MonthKey) ([]core.Level, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT level FROM budget_alerts WHERE category_id = ? AND month_key = ? ORDER BY level`,
		categoryID, month.String())
	if err != nil {
		return nil, fmt.Errorf("list fired levels: %w", err)
	}
	defer rows.Close()
	var out []core.Level
	for rows.Next() {
		var l int
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("scan level: %w", err)
		}
		out = append(out, core.Level(l))
	}
	return out, rows.Err()
}

// PruneBefore compares month keys as text; the zero padded YYYY-MM form
// sorts chronologically.
func (r *SQLiteRepository) PruneBefore(ctx context.Context, oldest core.MonthKey) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budget_alerts WHERE month_key < ?`, oldest.String())
	if err != nil {
		return 0, fmt.Errorf("prune budget alerts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune budget alerts: %w", err)
	}

	slog.InfoContext(ctx, "Pruned budget alerts", "before", oldest.String(), "deleted", n)
	return n, nil
}

func (r *SQLiteRepository) ListDays(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT date_epoch_day FROM daily_entries ORDER BY date_epoch_day`)
	if err != nil {
		return nil, fmt.Errorf("list daily entries: %w", err)
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan daily entry: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertDay(ctx context.Context, epochDay int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO daily_entries (date_epoch_day) VALUES (?) ON CONFLICT (date_epoch_day) DO NOTHING`, epochDay)
	if err != nil {
		return false, fmt.Errorf("insert daily entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert daily entry: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) HasDay(ctx context.Context, epochDay int) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM daily_entries WHERE date_epoch_day = ?`, epochDay).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check daily entry: %w", err)
	}
	return n > 0, nil
}

const ruleColumns = `id, name, amount_minor, note, category_id, account_id, is_income,
	frequency, interval_count, start_utc_millis, next_run_utc_millis, last_run_utc_millis,
	end_utc_millis, is_active`

func (r *SQLiteRepository) ListRecurringRules(ctx context.Context) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules ORDER BY next_run_utc_millis, id`)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}
	return scanRules(rows)
}

func (r *SQLiteRepository) GetRecurringRule(ctx context.Context, id string) (core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ruleColumns+` FROM recurring_rules WHERE id = ?`, id)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("get recurring rule %s: %w", id, err)
	}
	rules, err := scanRules(rows)
	if err != nil {
		return core.RecurringRule{}, err
	}
	if len(rules) == 0 {
		return core.RecurringRule{}, store.ErrNotFound
	}
	return rules[0], nil
}

func (r *SQLiteRepository) UpsertRecurringRule(ctx context.Context, rule core.RecurringRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			amount_minor = excluded.amount_minor,
			note = excluded.note,
			category_id = excluded.category_id,
			account_id = excluded.account_id,
			is_income = excluded.is_income,
			frequency = excluded.frequency,
			interval_count = excluded.interval_count,
			start_utc_millis = excluded.start_utc_millis,
			next_run_utc_millis = excluded.next_run_utc_millis,
			last_run_utc_millis = excluded.last_run_utc_millis,
			end_utc_millis = excluded.end_utc_millis,
			is_active = excluded.is_active`,
		rule.ID, rule.Name, rule.Amount.Minor, rule.Note,
		nullString(rule.CategoryID), nullString(rule.AccountID), rule.IsIncome,
		string(rule.Frequency), rule.Interval, rule.StartUTCMillis, rule.NextRunUTCMillis,
		rule.LastRunUTCMillis, rule.EndUTCMillis, rule.Active)
	if err != nil {
		return fmt.Errorf("upsert recurring rule: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteRecurringRule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recurring rule: %w", err)
	}
	return expectAffected(res)
}

func (r *SQLiteRepository) DueRecurringRules(ctx context.Context, nowMillis int64) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+ruleColumns+` FROM recurring_rules
		WHERE is_active = 1 AND next_run_utc_millis <= ?
		ORDER BY next_run_utc_millis, id`, nowMillis)
	if err != nil {
		return nil, fmt.Errorf("list due recurring rules: %w", err)
	}
	return scanRules(rows)
}

func (r *SQLiteRepository) AdvanceRecurringRule(ctx context.Context, id string, lastRun, nextRun int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_rules
		SET last_run_utc_millis = ?, next_run_utc_millis = ?, is_active = ?
		WHERE id = ?`, lastRun, nextRun, active, id)
	if err != nil {
		return fmt.Errorf("advance recurring rule %s: %w", id, err)
	}
	return expectAffected(res)
}

func scanRules(rows *sql.Rows) ([]core.RecurringRule, error) {
	defer rows.Close()
	var out []core.RecurringRule
	for rows.Next() {
		var (
			rule      core.RecurringRule
			frequency string
			category  sql.NullString
			account   sql.NullString
		)
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Amount.Minor, &rule.Note,
			&category, &account, &rule.IsIncome,
			&frequency, &rule.Interval, &rule.StartUTCMillis, &rule.NextRunUTCMillis,
			&rule.LastRunUTCMillis, &rule.EndUTCMillis, &rule.Active); err != nil {
			return nil, fmt.Errorf("scan recurring rule: %w", err)
		}
		rule.Frequency = core.Frequency(frequency)
		rule.CategoryID = category.String
		rule.AccountID = account.String
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recurring rules: %w", err)
	}
	return out, nil
}

// LatestChangeID reads the newest change_log row. The triggers created by the
// migrations fill the table.
func (r *SQLiteRepository) LatestChangeID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM change_log`).Scan(&id); err != nil {
		return 0, fmt.Errorf("latest change: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) ChangesSince(ctx context.Context, afterID int64, limit int) ([]store.ChangeRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, table_name, row_key FROM change_log WHERE id > ? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()
	var out []store.ChangeRecord
	for rows.Next() {
		var c store.ChangeRecord
		if err := rows.Scan(&c.ID, &c.Table, &c.Key); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) PruneChanges(ctx context.Context, throughID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM change_log WHERE id <= ?`, throughID)
	if err != nil {
		return 0, fmt.Errorf("prune changes: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
