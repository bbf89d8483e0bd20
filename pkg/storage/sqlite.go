package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ogulcanaydogan/spend-guardian/pkg/model"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

// SQLite implements the Storage interface using an SQLite database.
// Timestamps are stored as unix milliseconds and amounts as decimal text.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

const goalColumns = `id, name, category_id, target_amount, current_amount, start_at, deadline, note, state, created_at, updated_at`

func (s *SQLite) CreateGoal(ctx context.Context, goal *model.Goal) error {
	if goal.StartAt.IsZero() {
		goal.StartAt = time.Now().UTC()
	}
	if err := goal.Validate(); err != nil {
		return err
	}
	if goal.ID == "" {
		goal.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = now
	}
	goal.UpdatedAt = now
	goal.State = model.StateActive

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (`+goalColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		goal.ID, goal.Name, goal.CategoryID,
		goal.TargetAmount.String(), goal.CurrentAmount.String(),
		goal.StartAt.UnixMilli(), goal.Deadline.UnixMilli(),
		goal.Note, string(goal.State),
		goal.CreatedAt.UnixMilli(), goal.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

func (s *SQLite) GetGoal(ctx context.Context, id string) (*model.Goal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrGoalNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (s *SQLite) ListGoals(ctx context.Context, state model.GoalState) ([]model.Goal, error) {
	if state == "" {
		return s.queryGoals(ctx, `SELECT `+goalColumns+` FROM goals ORDER BY deadline, name`)
	}
	return s.queryGoals(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE state = ? ORDER BY deadline, name`, string(state))
}

func (s *SQLite) DeleteGoal(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", model.ErrGoalNotFound, id)
	}
	return nil
}

func (s *SQLite) ActiveGoals(ctx context.Context) ([]model.Goal, error) {
	return s.ListGoals(ctx, model.StateActive)
}

func (s *SQLite) GoalsDueBetween(ctx context.Context, from, through time.Time) ([]model.Goal, error) {
	return s.queryGoals(ctx,
		`SELECT `+goalColumns+` FROM goals
		 WHERE state = ? AND deadline >= ? AND deadline <= ?
		 ORDER BY deadline, name`,
		string(model.StateActive), from.UnixMilli(), through.UnixMilli())
}

func (s *SQLite) UpdateGoalState(ctx context.Context, id string, state model.GoalState) (bool, error) {
	if !model.StateActive.CanTransition(state) {
		return false, fmt.Errorf("%w: active -> %s", model.ErrInvalidTransition, state)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE goals SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		string(state), time.Now().UTC().UnixMilli(), id, string(model.StateActive))
	if err != nil {
		return false, fmt.Errorf("update goal state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update goal state: %w", err)
	}
	return n == 1, nil
}

func (s *SQLite) UpdateGoalCurrentAmount(ctx context.Context, id string, amount decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE goals SET current_amount = ?, updated_at = ? WHERE id = ?`,
		amount.String(), time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("update goal amount: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update goal amount: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", model.ErrGoalNotFound, id)
	}
	return nil
}

func (s *SQLite) RecordTransaction(ctx context.Context, txn *model.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.OccurredAt.IsZero() {
		txn.OccurredAt = time.Now().UTC()
	}
	if txn.Kind == "" {
		txn.Kind = model.KindExpense
	}
	if txn.CategoryID == "" {
		return fmt.Errorf("transaction category is required")
	}
	if !txn.Amount.IsPositive() {
		return fmt.Errorf("transaction amount must be positive, got %s", txn.Amount)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, category_id, amount, kind, note, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.CategoryID, txn.Amount.String(), string(txn.Kind),
		txn.Note, txn.OccurredAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *SQLite) CategorySpend(ctx context.Context, categoryID string, start, end time.Time) (decimal.Decimal, error) {
	return s.sumExpenses(ctx,
		`SELECT amount FROM transactions
		 WHERE kind = ? AND category_id = ? AND occurred_at >= ? AND occurred_at < ?`,
		string(model.KindExpense), categoryID, start.UnixMilli(), end.UnixMilli())
}

func (s *SQLite) TotalSpend(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	return s.sumExpenses(ctx,
		`SELECT amount FROM transactions
		 WHERE kind = ? AND occurred_at >= ? AND occurred_at < ?`,
		string(model.KindExpense), start.UnixMilli(), end.UnixMilli())
}

// sumExpenses adds amounts in Go so the total keeps decimal precision.
func (s *SQLite) sumExpenses(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("aggregate spend: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("scan amount: %w", err)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("aggregate spend: %w", err)
	}
	return total, nil
}

func (s *SQLite) LastActivity(ctx context.Context) (time.Time, bool, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT last_at FROM activity WHERE id = 1`).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get last activity: %w", err)
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

func (s *SQLite) RecordActivity(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity (id, last_at) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET last_at = MAX(last_at, excluded.last_at)`,
		at.UnixMilli())
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) queryGoals(ctx context.Context, query string, args ...any) ([]model.Goal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var goals []model.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGoal(row scanner) (*model.Goal, error) {
	var (
		g                    model.Goal
		state                string
		startAt, deadline    int64
		createdAt, updatedAt int64
	)
	err := row.Scan(&g.ID, &g.Name, &g.CategoryID, &g.TargetAmount, &g.CurrentAmount,
		&startAt, &deadline, &g.Note, &state, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	g.State = model.GoalState(state)
	g.StartAt = time.UnixMilli(startAt).UTC()
	g.Deadline = time.UnixMilli(deadline).UTC()
	g.CreatedAt = time.UnixMilli(createdAt).UTC()
	g.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &g, nil
}
