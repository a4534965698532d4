package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"forexbot/internal/domain"
	"forexbot/internal/id"
	"forexbot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.DealRepository and ports.OrderJournal using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

var (
	_ ports.DealRepository = (*Repository)(nil)
	_ ports.OrderJournal   = (*Repository)(nil)
)

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/forexbot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// One writer: the loop journals while the paper terminal books deals.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// Times are stored as unix milliseconds so range filters compare numbers, not strings.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS deals (
		ticket TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		type TEXT NOT NULL,
		magic INTEGER NOT NULL,
		volume REAL NOT NULL,
		price REAL NOT NULL,
		profit REAL NOT NULL,
		close_time INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		time INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		volume REAL NOT NULL,
		price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit REAL NOT NULL,
		deviation REAL NOT NULL,
		magic INTEGER NOT NULL,
		comment TEXT NOT NULL,
		result_code TEXT NOT NULL,
		ticket TEXT NOT NULL,
		fill_price REAL NOT NULL,
		message TEXT NOT NULL,
		error TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_deals_close_time ON deals (close_time);
	CREATE INDEX IF NOT EXISTS idx_orders_time ON orders (time);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- DealRepository Implementation ---

// SaveDeal persists a closed deal. Tickets are unique.
func (r *Repository) SaveDeal(ctx context.Context, deal *domain.Deal) error {
	const query = `
	INSERT INTO deals (ticket, symbol, type, magic, volume, price, profit, close_time)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	if deal.Ticket == "" {
		deal.Ticket = id.At(deal.Time)
	}
	_, err := r.db.ExecContext(ctx, query,
		deal.Ticket, deal.Symbol, string(deal.Type), deal.Magic, deal.Volume, deal.Price, deal.Profit, toMillis(deal.Time))
	if err != nil {
		return fmt.Errorf("failed to insert deal %s: %w: %w", deal.Ticket, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Deal saved", map[string]interface{}{"ticket": deal.Ticket, "symbol": deal.Symbol, "profit": deal.Profit})
	return nil
}

// DealsBetween returns deals closed within [from, to], oldest first.
func (r *Repository) DealsBetween(ctx context.Context, from, to time.Time) ([]*domain.Deal, error) {
	const query = `
	SELECT ticket, symbol, type, magic, volume, price, profit, close_time
	FROM deals
	WHERE close_time >= ? AND close_time <= ?
	ORDER BY close_time ASC, ticket ASC`

	rows, err := r.db.QueryContext(ctx, query, toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query deals: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	deals := make([]*domain.Deal, 0)
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deal rows: %w", err)
	}
	return deals, nil
}

// TotalProfit sums the profit of every stored deal.
func (r *Repository) TotalProfit(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(SUM(profit), 0) FROM deals`
	var total float64
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to calculate total profit: %w: %w", ports.ErrQueryFailed, err)
	}
	return total, nil
}

// --- OrderJournal Implementation ---

// RecordOrder appends a journal entry, assigning its ID when empty.
func (r *Repository) RecordOrder(ctx context.Context, entry *ports.JournalEntry) error {
	const query = `
	INSERT INTO orders (id, time, symbol, direction, volume, price, stop_loss, take_profit, deviation,
	                    magic, comment, result_code, ticket, fill_price, message, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	if entry.ID == "" {
		entry.ID = id.At(entry.Time)
	}
	req, res := entry.Request, entry.Result
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, toMillis(entry.Time), req.Symbol, string(req.Direction), req.Volume, req.Price,
		req.StopLoss, req.TakeProfit, req.Deviation, req.Magic, req.Comment,
		res.Code, res.Ticket, res.Price, res.Message, entry.Err)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry %s: %w: %w", entry.ID, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Order journaled", map[string]interface{}{"id": entry.ID, "code": res.Code})
	return nil
}

// RecentOrders returns the most recent journal entries, newest first.
func (r *Repository) RecentOrders(ctx context.Context, limit int) ([]*ports.JournalEntry, error) {
	const query = `
	SELECT id, time, symbol, direction, volume, price, stop_loss, take_profit, deviation,
	       magic, comment, result_code, ticket, fill_price, message, error
	FROM orders
	ORDER BY time DESC, id DESC LIMIT ?`

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d: %w", limit, ports.ErrInvalidRequest)
	}
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	entries := make([]*ports.JournalEntry, 0)
	for rows.Next() {
		e, err := scanJournalEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal rows: %w", err)
	}
	return entries, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDeal(s scanner) (*domain.Deal, error) {
	d := &domain.Deal{}
	var dealType string
	var closeTime int64
	err := s.Scan(&d.Ticket, &d.Symbol, &dealType, &d.Magic, &d.Volume, &d.Price, &d.Profit, &closeTime)
	if err != nil {
		return nil, err
	}
	d.Type = domain.DealType(dealType)
	d.Time = fromMillis(closeTime)
	return d, nil
}

func scanJournalEntry(s scanner) (*ports.JournalEntry, error) {
	e := &ports.JournalEntry{}
	var ts int64
	var direction string
	req, res := &e.Request, &e.Result
	err := s.Scan(&e.ID, &ts, &req.Symbol, &direction, &req.Volume, &req.Price, &req.StopLoss, &req.TakeProfit,
		&req.Deviation, &req.Magic, &req.Comment, &res.Code, &res.Ticket, &res.Price, &res.Message, &e.Err)
	if err != nil {
		return nil, err
	}
	e.Time = fromMillis(ts)
	req.Direction = domain.Direction(direction)
	return e, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
