package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hzfeng/papertrade/internal/domain"
	"github.com/hzfeng/papertrade/internal/service"
)

// AccountHandler handles HTTP requests for account endpoints.
type AccountHandler struct {
	accountSvc *service.AccountService
	orderSvc   *service.OrderService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc *service.AccountService, orderSvc *service.OrderService) *AccountHandler {
	return &AccountHandler{
		accountSvc: accountSvc,
		orderSvc:   orderSvc,
	}
}

// registerAccountRequest is the JSON request body for POST /accounts.
type registerAccountRequest struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Group     string `json:"group"`
}

// accountResponse is the JSON response for POST /accounts (201 Created).
type accountResponse struct {
	AccountID   string  `json:"account_id"`
	Name        string  `json:"name"`
	Group       string  `json:"group"`
	CashBalance float64 `json:"cash_balance"`
	CreatedAt   string  `json:"created_at"`
}

// positionResponse is a single position in the summary response.
type positionResponse struct {
	Symbol        string  `json:"symbol"`
	Quantity      int64   `json:"quantity"`
	Available     int64   `json:"available"`
	Reserved      int64   `json:"reserved"`
	AvgCost       float64 `json:"avg_cost"`
	LastPrice     float64 `json:"last_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// summaryResponse is the JSON response for GET /accounts/{account_id}/summary.
type summaryResponse struct {
	AccountID     string             `json:"account_id"`
	Name          string             `json:"name"`
	Group         string             `json:"group"`
	CashBalance   float64            `json:"cash_balance"`
	ReservedCash  float64            `json:"reserved_cash"`
	AvailableCash float64            `json:"available_cash"`
	MarketValue   float64            `json:"market_value"`
	TotalAssets   float64            `json:"total_assets"`
	Positions     []positionResponse `json:"positions"`
	PendingOrders []orderResponse    `json:"pending_orders"`
	CreatedAt     string             `json:"created_at"`
}

// tradeListResponse is the JSON response for GET /accounts/{account_id}/trades.
type tradeListResponse struct {
	Trades []tradeResponse `json:"trades"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

// orderListResponse is the JSON response for GET /accounts/{account_id}/orders.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

// Register handles POST /accounts.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerAccountRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	state, err := h.accountSvc.Register(r.Context(), service.RegisterAccountRequest{
		AccountID: req.AccountID,
		Name:      req.Name,
		Group:     req.Group,
	})
	if err != nil {
		mapAccountError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, accountResponse{
		AccountID:   state.AccountID,
		Name:        state.Name,
		Group:       state.Group,
		CashBalance: domain.CentsToYuan(state.CashBalance),
		CreatedAt:   state.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// Summary handles GET /accounts/{account_id}/summary.
func (h *AccountHandler) Summary(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	sum, err := h.accountSvc.Summary(r.Context(), accountID)
	if err != nil {
		mapAccountError(w, err)
		return
	}

	positions := make([]positionResponse, len(sum.Positions))
	for i, p := range sum.Positions {
		positions[i] = positionResponse{
			Symbol:        p.Symbol,
			Quantity:      p.Quantity,
			Available:     p.Available,
			Reserved:      p.Reserved,
			AvgCost:       domain.CentsToYuan(p.AvgCost),
			LastPrice:     domain.CentsToYuan(p.LastPrice),
			MarketValue:   domain.CentsToYuan(p.MarketValue),
			UnrealizedPnL: domain.CentsToYuan(p.UnrealizedPnL),
		}
	}

	pending := make([]orderResponse, len(sum.PendingOrders))
	for i, o := range sum.PendingOrders {
		pending[i] = buildOrderResponse(o)
	}

	WriteJSON(w, http.StatusOK, summaryResponse{
		AccountID:     sum.AccountID,
		Name:          sum.Name,
		Group:         sum.Group,
		CashBalance:   domain.CentsToYuan(sum.CashBalance),
		ReservedCash:  domain.CentsToYuan(sum.ReservedCash),
		AvailableCash: domain.CentsToYuan(sum.AvailableCash),
		MarketValue:   domain.CentsToYuan(sum.MarketValue),
		TotalAssets:   domain.CentsToYuan(sum.TotalAssets),
		Positions:     positions,
		PendingOrders: pending,
		CreatedAt:     sum.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// Trades handles GET /accounts/{account_id}/trades.
func (h *AccountHandler) Trades(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	page, limit, ok := parsePagination(w, r)
	if !ok {
		return
	}

	trades, total, err := h.accountSvc.History(accountID, page, limit)
	if err != nil {
		mapAccountError(w, err)
		return
	}

	items := make([]tradeResponse, len(trades))
	for i, trade := range trades {
		items[i] = buildTradeResponse(trade)
	}

	WriteJSON(w, http.StatusOK, tradeListResponse{
		Trades: items,
		Total:  total,
		Page:   page,
		Limit:  limit,
	})
}

// Orders handles GET /accounts/{account_id}/orders.
func (h *AccountHandler) Orders(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	var statusFilter *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.OrderStatus(s)
		statusFilter = &status
	}

	page, limit, ok := parsePagination(w, r)
	if !ok {
		return
	}

	orders, total, err := h.orderSvc.ListOrders(accountID, statusFilter, page, limit)
	if err != nil {
		mapAccountError(w, err)
		return
	}

	items := make([]orderResponse, len(orders))
	for i, o := range orders {
		items[i] = buildOrderResponse(o)
	}

	WriteJSON(w, http.StatusOK, orderListResponse{
		Orders: items,
		Total:  total,
		Page:   page,
		Limit:  limit,
	})
}

// parsePagination reads the page and limit query parameters, defaulting
// to page 1 and limit 20. On a malformed value it writes a 400 response
// and reports false.
func parsePagination(w http.ResponseWriter, r *http.Request) (page, limit int, ok bool) {
	page = 1
	if p := r.URL.Query().Get("page"); p != "" {
		var err error
		page, err = strconv.Atoi(p)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "page must be a valid integer")
			return 0, 0, false
		}
	}

	limit = 20
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a valid integer")
			return 0, 0, false
		}
	}

	return page, limit, true
}

// mapAccountError maps domain errors to HTTP responses for account endpoints.
func mapAccountError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrAccountAlreadyExists):
		WriteError(w, http.StatusConflict, "account_already_exists", "Account already exists")
	case errors.Is(err, domain.ErrAccountNotFound):
		WriteError(w, http.StatusNotFound, "account_not_found", "Account not found")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
