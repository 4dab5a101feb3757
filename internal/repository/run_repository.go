package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cjg131/backtester-v1/internal/apperrors"
	"github.com/cjg131/backtester-v1/internal/model"
)

// RunRepository provides data access methods for the simulation_run table
// and its child tables (trades, equity curve, tax summaries).
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the provided database connection.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun persists a completed run and its trades, equity curve, and
// tax summaries in a single transaction.
func (s *RunRepository) CreateRun(run model.SimulationRun, result *model.Result) error {
	configJSON, err := json.Marshal(result.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal run config: %w", err)
	}
	warningsJSON, err := json.Marshal(run.Warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal run warnings: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.Exec(`
		INSERT INTO simulation_run (id, name, config, status, start_date, end_date, final_value, warnings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Name,
		string(configJSON),
		run.Status,
		run.StartDate.Format("2006-01-02"),
		run.EndDate.Format("2006-01-02"),
		run.FinalValue,
		string(warningsJSON),
		run.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert simulation_run: %w", err)
	}

	tradeStmt, err := tx.Prepare(`
		INSERT INTO simulation_trade (id, run_id, trade_date, symbol, action, quantity, price, commission, slippage, total_cost, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare trade insert: %w", err)
	}
	defer tradeStmt.Close()

	for _, t := range result.Trades {
		_, err = tradeStmt.Exec(
			t.ID,
			run.ID,
			t.Date.Format("2006-01-02"),
			t.Symbol,
			string(t.Action),
			t.Quantity,
			t.Price,
			t.Commission,
			t.Slippage,
			t.TotalCost,
			t.Notes,
		)
		if err != nil {
			return fmt.Errorf("failed to insert simulation_trade: %w", err)
		}
	}

	equityStmt, err := tx.Prepare(`
		INSERT INTO simulation_equity (id, run_id, date, portfolio_value, cash, positions_value)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare equity insert: %w", err)
	}
	defer equityStmt.Close()

	for _, p := range result.EquityCurve {
		_, err = equityStmt.Exec(
			uuid.NewString(),
			run.ID,
			p.Date.Format("2006-01-02"),
			p.PortfolioValue,
			p.Cash,
			p.PositionsValue,
		)
		if err != nil {
			return fmt.Errorf("failed to insert simulation_equity: %w", err)
		}
	}

	for _, ts := range result.TaxSummaries {
		_, err = tx.Exec(`
			INSERT INTO simulation_tax_summary (id, run_id, year, short_term_gains, long_term_gains, qualified_dividends, ordinary_dividends, interest_income, total_tax, wash_sale_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			uuid.NewString(),
			run.ID,
			ts.Year,
			ts.ShortTermGains,
			ts.LongTermGains,
			ts.QualifiedDividends,
			ts.OrdinaryDividends,
			ts.InterestIncome,
			ts.TotalTax,
			ts.WashSaleCount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert simulation_tax_summary: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	return nil
}

// GetRuns retrieves run headers ordered newest first. A limit of zero
// returns all runs.
func (s *RunRepository) GetRuns(limit int) ([]model.SimulationRun, error) {
	query := `
		SELECT id, name, status, start_date, end_date, final_value, warnings, created_at
		FROM simulation_run
		ORDER BY created_at DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query simulation_run table: %w", err)
	}
	defer rows.Close()

	runs := []model.SimulationRun{}
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating simulation_run table: %w", err)
	}

	return runs, nil
}

// GetRunOnID retrieves a single run header by ID.
func (s *RunRepository) GetRunOnID(runID string) (model.SimulationRun, error) {
	row := s.db.QueryRow(`
		SELECT id, name, status, start_date, end_date, final_value, warnings, created_at
		FROM simulation_run
		WHERE id = ?
	`, runID)

	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SimulationRun{}, apperrors.ErrRunNotFound
	}
	if err != nil {
		return model.SimulationRun{}, err
	}

	var configJSON string
	err = s.db.QueryRow(`SELECT config FROM simulation_run WHERE id = ?`, runID).Scan(&configJSON)
	if err != nil {
		return model.SimulationRun{}, fmt.Errorf("failed to query run config: %w", err)
	}
	run.ConfigJSON = configJSON

	return run, nil
}

// GetTradesOnRunID retrieves all trades for a run ordered by date.
func (s *RunRepository) GetTradesOnRunID(runID string) ([]model.Trade, error) {
	rows, err := s.db.Query(`
		SELECT id, trade_date, symbol, action, quantity, price, commission, slippage, total_cost, notes
		FROM simulation_trade
		WHERE run_id = ?
		ORDER BY trade_date ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query simulation_trade table: %w", err)
	}
	defer rows.Close()

	trades := []model.Trade{}
	for rows.Next() {
		var t model.Trade
		var dateStr, action string
		var notes sql.NullString

		err := rows.Scan(
			&t.ID,
			&dateStr,
			&t.Symbol,
			&action,
			&t.Quantity,
			&t.Price,
			&t.Commission,
			&t.Slippage,
			&t.TotalCost,
			&notes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan simulation_trade table results: %w", err)
		}

		t.Date, err = ParseTime(dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse trade date: %w", err)
		}
		t.Action = model.TradeAction(action)
		t.Notes = notes.String

		trades = append(trades, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating simulation_trade table: %w", err)
	}

	return trades, nil
}

// GetEquityOnRunID retrieves the stored equity curve for a run.
func (s *RunRepository) GetEquityOnRunID(runID string) ([]model.EquityPoint, error) {
	rows, err := s.db.Query(`
		SELECT date, portfolio_value, cash, positions_value
		FROM simulation_equity
		WHERE run_id = ?
		ORDER BY date ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query simulation_equity table: %w", err)
	}
	defer rows.Close()

	points := []model.EquityPoint{}
	for rows.Next() {
		var p model.EquityPoint
		var dateStr string

		err := rows.Scan(&dateStr, &p.PortfolioValue, &p.Cash, &p.PositionsValue)
		if err != nil {
			return nil, fmt.Errorf("failed to scan simulation_equity table results: %w", err)
		}

		p.Date, err = ParseTime(dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse equity date: %w", err)
		}

		points = append(points, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating simulation_equity table: %w", err)
	}

	return points, nil
}

// GetTaxSummariesOnRunID retrieves the stored annual tax summaries for a run.
func (s *RunRepository) GetTaxSummariesOnRunID(runID string) ([]model.TaxSummary, error) {
	rows, err := s.db.Query(`
		SELECT year, short_term_gains, long_term_gains, qualified_dividends, ordinary_dividends, interest_income, total_tax, wash_sale_count
		FROM simulation_tax_summary
		WHERE run_id = ?
		ORDER BY year ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query simulation_tax_summary table: %w", err)
	}
	defer rows.Close()

	summaries := []model.TaxSummary{}
	for rows.Next() {
		var ts model.TaxSummary

		err := rows.Scan(
			&ts.Year,
			&ts.ShortTermGains,
			&ts.LongTermGains,
			&ts.QualifiedDividends,
			&ts.OrdinaryDividends,
			&ts.InterestIncome,
			&ts.TotalTax,
			&ts.WashSaleCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan simulation_tax_summary table results: %w", err)
		}

		summaries = append(summaries, ts)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating simulation_tax_summary table: %w", err)
	}

	return summaries, nil
}

// DeleteRun removes a run and, via foreign keys, its child rows.
func (s *RunRepository) DeleteRun(runID string) error {
	result, err := s.db.Exec(`DELETE FROM simulation_run WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete simulation_run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrRunNotFound
	}

	return nil
}

// DeleteRunsOlderThan removes runs created before the cutoff and returns
// how many were deleted.
func (s *RunRepository) DeleteRunsOlderThan(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM simulation_run WHERE created_at < ?`,
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge simulation_run table: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge result: %w", err)
	}

	return affected, nil
}

// scanRun scans a run header row shared between GetRuns and GetRunOnID.
func scanRun(scan func(dest ...any) error) (model.SimulationRun, error) {
	var run model.SimulationRun
	var startStr, endStr, createdStr, warningsJSON string

	err := scan(
		&run.ID,
		&run.Name,
		&run.Status,
		&startStr,
		&endStr,
		&run.FinalValue,
		&warningsJSON,
		&createdStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SimulationRun{}, err
	}
	if err != nil {
		return model.SimulationRun{}, fmt.Errorf("failed to scan simulation_run table results: %w", err)
	}

	if run.StartDate, err = ParseTime(startStr); err != nil {
		return model.SimulationRun{}, fmt.Errorf("failed to parse run start date: %w", err)
	}
	if run.EndDate, err = ParseTime(endStr); err != nil {
		return model.SimulationRun{}, fmt.Errorf("failed to parse run end date: %w", err)
	}
	if run.CreatedAt, err = ParseTime(createdStr); err != nil {
		return model.SimulationRun{}, fmt.Errorf("failed to parse run created_at: %w", err)
	}

	if err = json.Unmarshal([]byte(warningsJSON), &run.Warnings); err != nil {
		return model.SimulationRun{}, fmt.Errorf("failed to unmarshal run warnings: %w", err)
	}

	return run, nil
}
