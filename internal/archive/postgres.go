package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hzfeng/papertrade/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	account_id    TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	group_name    TEXT NOT NULL DEFAULT '',
	cash_balance  BIGINT NOT NULL,
	reserved_cash BIGINT NOT NULL,
	seq           BIGINT NOT NULL,
	settled_day   TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	account_id TEXT NOT NULL REFERENCES accounts(account_id) ON DELETE CASCADE,
	symbol     TEXT NOT NULL,
	quantity   BIGINT NOT NULL,
	available  BIGINT NOT NULL,
	reserved   BIGINT NOT NULL,
	total_cost BIGINT NOT NULL,
	last_price BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (account_id, symbol)
);

CREATE TABLE IF NOT EXISTS orders (
	order_id        BIGINT PRIMARY KEY,
	account_id      TEXT NOT NULL,
	symbol          TEXT NOT NULL,
	side            TEXT NOT NULL,
	kind            TEXT NOT NULL,
	quantity        BIGINT NOT NULL,
	limit_price     BIGINT NOT NULL,
	reserved_cash   BIGINT NOT NULL,
	reserved_shares BIGINT NOT NULL,
	status          TEXT NOT NULL,
	reject_reason   TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	resolved_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_orders_account ON orders (account_id);

CREATE TABLE IF NOT EXISTS trades (
	trade_id     TEXT PRIMARY KEY,
	order_id     BIGINT NOT NULL,
	account_id   TEXT NOT NULL,
	symbol       TEXT NOT NULL,
	side         TEXT NOT NULL,
	price        BIGINT NOT NULL,
	quantity     BIGINT NOT NULL,
	commission   BIGINT NOT NULL,
	realized_pnl BIGINT NOT NULL,
	executed_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_account ON trades (account_id);
`

// Postgres is an Archive backed by a pgx connection pool. Every call
// runs under its own deadline so a slow database degrades writes to
// warnings instead of stalling the engine.
type Postgres struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// OpenPostgres connects to the given DSN, verifies the connection and
// creates the schema if it does not exist yet.
func OpenPostgres(ctx context.Context, dsn string, timeout time.Duration) (*Postgres, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{pool: pool, timeout: timeout}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// wrap normalizes deadline errors to the domain sentinel so callers can
// distinguish a slow database from a broken query.
func wrap(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, domain.ErrPersistenceTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (p *Postgres) LoadAccounts(ctx context.Context) ([]domain.AccountState, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	query := `SELECT account_id, name, group_name, cash_balance, reserved_cash, seq, settled_day, created_at
		FROM accounts ORDER BY seq`
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, wrap("load accounts", err)
	}
	defer rows.Close()

	var states []domain.AccountState
	index := make(map[string]int)
	for rows.Next() {
		var s domain.AccountState
		if err := rows.Scan(&s.AccountID, &s.Name, &s.Group, &s.CashBalance,
			&s.ReservedCash, &s.Seq, &s.SettledDay, &s.CreatedAt); err != nil {
			return nil, wrap("scan account", err)
		}
		index[s.AccountID] = len(states)
		states = append(states, s)
	}
	if rows.Err() != nil {
		return nil, wrap("iterate accounts", rows.Err())
	}

	posQuery := `SELECT account_id, symbol, quantity, available, reserved, total_cost, last_price, updated_at
		FROM positions ORDER BY account_id, symbol`
	posRows, err := p.pool.Query(ctx, posQuery)
	if err != nil {
		return nil, wrap("load positions", err)
	}
	defer posRows.Close()

	for posRows.Next() {
		var accountID string
		var pos domain.Position
		if err := posRows.Scan(&accountID, &pos.Symbol, &pos.Quantity, &pos.Available,
			&pos.Reserved, &pos.TotalCost, &pos.LastPrice, &pos.UpdatedAt); err != nil {
			return nil, wrap("scan position", err)
		}
		if i, ok := index[accountID]; ok {
			states[i].Positions = append(states[i].Positions, pos)
		}
	}
	if posRows.Err() != nil {
		return nil, wrap("iterate positions", posRows.Err())
	}
	return states, nil
}

func (p *Postgres) SaveAccount(ctx context.Context, state domain.AccountState) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return wrap("begin save account", err)
	}
	defer tx.Rollback(ctx)

	upsert := `INSERT INTO accounts (account_id, name, group_name, cash_balance, reserved_cash, seq, settled_day, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account_id) DO UPDATE SET
			cash_balance = EXCLUDED.cash_balance,
			reserved_cash = EXCLUDED.reserved_cash,
			settled_day = EXCLUDED.settled_day`
	if _, err := tx.Exec(ctx, upsert, state.AccountID, state.Name, state.Group,
		state.CashBalance, state.ReservedCash, state.Seq, state.SettledDay, state.CreatedAt); err != nil {
		return wrap("upsert account", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM positions WHERE account_id = $1`, state.AccountID); err != nil {
		return wrap("clear positions", err)
	}
	insert := `INSERT INTO positions (account_id, symbol, quantity, available, reserved, total_cost, last_price, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, pos := range state.Positions {
		if _, err := tx.Exec(ctx, insert, state.AccountID, pos.Symbol, pos.Quantity,
			pos.Available, pos.Reserved, pos.TotalCost, pos.LastPrice, pos.UpdatedAt); err != nil {
			return wrap("insert position", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return wrap("commit save account", err)
	}
	return nil
}

func (p *Postgres) LoadOrders(ctx context.Context) ([]*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Filled orders carry exactly one execution record, so a left join
	// rehydrates Order.Trade in the same pass.
	query := `SELECT o.order_id, o.account_id, o.symbol, o.side, o.kind, o.quantity, o.limit_price,
			o.reserved_cash, o.reserved_shares, o.status, o.reject_reason, o.created_at, o.resolved_at,
			t.trade_id, t.price, t.quantity, t.commission, t.realized_pnl, t.executed_at
		FROM orders o
		LEFT JOIN trades t ON t.order_id = o.order_id
		ORDER BY o.order_id`
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, wrap("load orders", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o := &domain.Order{}
		var tradeID *string
		var tradePrice, tradeQty, tradeFee, tradePnL *int64
		var tradeAt *time.Time
		if err := rows.Scan(&o.OrderID, &o.AccountID, &o.Symbol, &o.Side, &o.Kind,
			&o.Quantity, &o.LimitPrice, &o.ReservedCash, &o.ReservedShares,
			&o.Status, &o.RejectReason, &o.CreatedAt, &o.ResolvedAt,
			&tradeID, &tradePrice, &tradeQty, &tradeFee, &tradePnL, &tradeAt); err != nil {
			return nil, wrap("scan order", err)
		}
		if tradeID != nil {
			o.Trade = &domain.Trade{
				TradeID:     *tradeID,
				OrderID:     o.OrderID,
				AccountID:   o.AccountID,
				Symbol:      o.Symbol,
				Side:        o.Side,
				Price:       *tradePrice,
				Quantity:    *tradeQty,
				Commission:  *tradeFee,
				RealizedPnL: *tradePnL,
				ExecutedAt:  *tradeAt,
			}
		}
		orders = append(orders, o)
	}
	if rows.Err() != nil {
		return nil, wrap("iterate orders", rows.Err())
	}
	return orders, nil
}

func (p *Postgres) SaveOrder(ctx context.Context, order *domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	query := `INSERT INTO orders (order_id, account_id, symbol, side, kind, quantity, limit_price,
			reserved_cash, reserved_shares, status, reject_reason, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (order_id) DO UPDATE SET
			reserved_cash = EXCLUDED.reserved_cash,
			reserved_shares = EXCLUDED.reserved_shares,
			status = EXCLUDED.status,
			reject_reason = EXCLUDED.reject_reason,
			resolved_at = EXCLUDED.resolved_at`
	if _, err := p.pool.Exec(ctx, query, order.OrderID, order.AccountID, order.Symbol,
		order.Side, order.Kind, order.Quantity, order.LimitPrice,
		order.ReservedCash, order.ReservedShares, order.Status, order.RejectReason,
		order.CreatedAt, order.ResolvedAt); err != nil {
		return wrap("save order", err)
	}
	return nil
}

func (p *Postgres) LoadTrades(ctx context.Context) ([]*domain.Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	query := `SELECT trade_id, order_id, account_id, symbol, side, price, quantity, commission, realized_pnl, executed_at
		FROM trades ORDER BY executed_at`
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, wrap("load trades", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t := &domain.Trade{}
		if err := rows.Scan(&t.TradeID, &t.OrderID, &t.AccountID, &t.Symbol, &t.Side,
			&t.Price, &t.Quantity, &t.Commission, &t.RealizedPnL, &t.ExecutedAt); err != nil {
			return nil, wrap("scan trade", err)
		}
		trades = append(trades, t)
	}
	if rows.Err() != nil {
		return nil, wrap("iterate trades", rows.Err())
	}
	return trades, nil
}

func (p *Postgres) AppendTrade(ctx context.Context, trade *domain.Trade) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	query := `INSERT INTO trades (trade_id, order_id, account_id, symbol, side, price, quantity, commission, realized_pnl, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (trade_id) DO NOTHING`
	if _, err := p.pool.Exec(ctx, query, trade.TradeID, trade.OrderID, trade.AccountID,
		trade.Symbol, trade.Side, trade.Price, trade.Quantity,
		trade.Commission, trade.RealizedPnL, trade.ExecutedAt); err != nil {
		return wrap("append trade", err)
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
