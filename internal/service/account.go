package service

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/hzfeng/papertrade/internal/archive"
	"github.com/hzfeng/papertrade/internal/domain"
	"github.com/hzfeng/papertrade/internal/ledger"
	"github.com/hzfeng/papertrade/internal/market"
	"github.com/hzfeng/papertrade/internal/store"
)

var (
	accountIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	groupRegex     = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,32}$`)
)

// AccountService handles registration, account summaries and trade
// history.
type AccountService struct {
	ledger      *ledger.Ledger
	orders      *store.OrderStore
	trades      *store.TradeStore
	quotes      *market.QuoteCache
	archive     archive.Archive // may be nil
	initialCash int64
	logger      *slog.Logger
}

// NewAccountService creates an AccountService. Every new account starts
// with initialCash cents. arch may be nil.
func NewAccountService(
	ldg *ledger.Ledger,
	orders *store.OrderStore,
	trades *store.TradeStore,
	quotes *market.QuoteCache,
	arch archive.Archive,
	initialCash int64,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		ledger:      ldg,
		orders:      orders,
		trades:      trades,
		quotes:      quotes,
		archive:     arch,
		initialCash: initialCash,
		logger:      logger,
	}
}

// RegisterAccountRequest is the input for Register.
type RegisterAccountRequest struct {
	AccountID string
	Name      string
	Group     string
}

// Register validates the request and opens a new account funded with
// the configured initial cash.
func (s *AccountService) Register(ctx context.Context, req RegisterAccountRequest) (domain.AccountState, error) {
	if !accountIDRegex.MatchString(req.AccountID) {
		return domain.AccountState{}, &domain.ValidationError{
			Message: "account_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if req.Name == "" {
		return domain.AccountState{}, &domain.ValidationError{
			Message: "name is required",
		}
	}
	if len(req.Name) > 64 {
		return domain.AccountState{}, &domain.ValidationError{
			Message: "name must be at most 64 characters",
		}
	}
	if req.Group != "" && !groupRegex.MatchString(req.Group) {
		return domain.AccountState{}, &domain.ValidationError{
			Message: "group must match ^[a-zA-Z0-9_-]{1,32}$",
		}
	}

	state, err := s.ledger.Open(req.AccountID, req.Name, req.Group, s.initialCash)
	if err != nil {
		return domain.AccountState{}, err
	}

	if s.archive != nil {
		if err := s.archive.SaveAccount(ctx, state); err != nil {
			s.logger.Warn("archive account write failed", "account_id", state.AccountID, "error", err)
		}
	}
	return state, nil
}

// PositionSummary is a single holding in the account summary. Monetary
// amounts are in cents.
type PositionSummary struct {
	Symbol        string
	Quantity      int64
	Available     int64
	Reserved      int64
	AvgCost       int64
	LastPrice     int64
	MarketValue   int64
	UnrealizedPnL int64
}

// SummaryResponse is the full account view: balances, marked positions
// and open orders. Monetary amounts are in cents.
type SummaryResponse struct {
	AccountID     string
	Name          string
	Group         string
	CashBalance   int64
	ReservedCash  int64
	AvailableCash int64
	MarketValue   int64
	TotalAssets   int64
	Positions     []PositionSummary
	PendingOrders []*domain.Order
	CreatedAt     time.Time
}

// Summary returns the account's balances, positions marked at the
// freshest quote available, and its pending orders. Quote refresh is
// best-effort: on failure positions fall back to their stored
// mark-to-market price.
func (s *AccountService) Summary(ctx context.Context, accountID string) (*SummaryResponse, error) {
	state, err := s.ledger.Snapshot(accountID)
	if err != nil {
		return nil, err
	}

	var marks map[string]*domain.Quote
	if len(state.Positions) > 0 {
		symbols := make([]string, 0, len(state.Positions))
		for _, p := range state.Positions {
			symbols = append(symbols, p.Symbol)
		}
		marks, err = s.quotes.RefreshBatch(ctx, symbols)
		if err != nil {
			s.logger.Warn("quote refresh failed", "account_id", accountID, "error", err)
			marks = nil
		}
	}

	resp := &SummaryResponse{
		AccountID:     state.AccountID,
		Name:          state.Name,
		Group:         state.Group,
		CashBalance:   state.CashBalance,
		ReservedCash:  state.ReservedCash,
		AvailableCash: state.AvailableCash(),
		Positions:     make([]PositionSummary, 0, len(state.Positions)),
		PendingOrders: s.orders.PendingByAccount(accountID),
		CreatedAt:     state.CreatedAt,
	}

	for _, p := range state.Positions {
		price := p.LastPrice
		if q, ok := marks[p.Symbol]; ok && q.Price > 0 {
			price = q.Price
		}
		value := p.Quantity * price
		resp.Positions = append(resp.Positions, PositionSummary{
			Symbol:        p.Symbol,
			Quantity:      p.Quantity,
			Available:     p.Available,
			Reserved:      p.Reserved,
			AvgCost:       p.AvgCost(),
			LastPrice:     price,
			MarketValue:   value,
			UnrealizedPnL: value - p.TotalCost,
		})
		resp.MarketValue += value
	}
	resp.TotalAssets = resp.CashBalance + resp.MarketValue

	return resp, nil
}

// History returns the account's trades, newest first. Pagination is
// 1-based; limit must be between 1 and 100.
func (s *AccountService) History(accountID string, page, limit int) ([]*domain.Trade, int, error) {
	if !s.ledger.Exists(accountID) {
		return nil, 0, domain.ErrAccountNotFound
	}
	if page < 1 {
		return nil, 0, &domain.ValidationError{
			Message: "page must be >= 1",
		}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{
			Message: "limit must be between 1 and 100",
		}
	}

	trades, total := s.trades.ListByAccount(accountID, page, limit)
	return trades, total, nil
}
