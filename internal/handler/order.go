package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hzfeng/papertrade/internal/domain"
	"github.com/hzfeng/papertrade/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// placeOrderRequest is the JSON request body for POST /orders.
type placeOrderRequest struct {
	AccountID string   `json:"account_id"`
	Symbol    string   `json:"symbol"`
	Side      string   `json:"side"`
	Kind      string   `json:"kind"`
	Quantity  int64    `json:"quantity"`
	Price     *float64 `json:"price"`
}

// orderResponse is the JSON shape of an order. Market orders omit the
// price field; nullable fields use pointers.
type orderResponse struct {
	OrderID      int64          `json:"order_id"`
	AccountID    string         `json:"account_id"`
	Symbol       string         `json:"symbol"`
	Side         string         `json:"side"`
	Kind         string         `json:"kind"`
	Price        *float64       `json:"price,omitempty"`
	Quantity     int64          `json:"quantity"`
	Status       string         `json:"status"`
	RejectReason string         `json:"reject_reason,omitempty"`
	CreatedAt    string         `json:"created_at"`
	ResolvedAt   *string        `json:"resolved_at"`
	Trade        *tradeResponse `json:"trade,omitempty"`
}

// tradeResponse is a single execution in order and trade listings.
type tradeResponse struct {
	TradeID     string  `json:"trade_id"`
	OrderID     int64   `json:"order_id"`
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
	Commission  float64 `json:"commission"`
	RealizedPnL float64 `json:"realized_pnl"`
	ExecutedAt  string  `json:"executed_at"`
}

// Place handles POST /orders.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orderSvc.Place(r.Context(), service.PlaceOrderRequest{
		AccountID: req.AccountID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Kind:      req.Kind,
		Quantity:  req.Quantity,
		Price:     req.Price,
	})
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// Get handles GET /orders/{order_id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, orderID, ok := orderParams(w, r)
	if !ok {
		return
	}

	order, err := h.orderSvc.GetOrder(accountID, orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// Cancel handles DELETE /orders/{order_id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	accountID, orderID, ok := orderParams(w, r)
	if !ok {
		return
	}

	order, err := h.orderSvc.Cancel(r.Context(), accountID, orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// orderParams extracts the order id path parameter and the required
// account_id query parameter. On failure it writes a 400 response and
// reports false.
func orderParams(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "account_id query parameter is required")
		return "", 0, false
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "order_id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "order_id must be a valid integer")
		return "", 0, false
	}

	return accountID, orderID, true
}

// buildOrderResponse converts a domain order to its JSON shape with
// cents-to-yuan conversion. Limit orders include price, market orders
// omit it.
func buildOrderResponse(o *domain.Order) orderResponse {
	resp := orderResponse{
		OrderID:      o.OrderID,
		AccountID:    o.AccountID,
		Symbol:       o.Symbol,
		Side:         string(o.Side),
		Kind:         string(o.Kind),
		Quantity:     o.Quantity,
		Status:       string(o.Status),
		RejectReason: o.RejectReason,
		CreatedAt:    o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}

	if o.Kind == domain.OrderKindLimit {
		p := domain.CentsToYuan(o.LimitPrice)
		resp.Price = &p
	}
	if o.ResolvedAt != nil {
		s := o.ResolvedAt.UTC().Format("2006-01-02T15:04:05Z")
		resp.ResolvedAt = &s
	}
	if o.Trade != nil {
		t := buildTradeResponse(o.Trade)
		resp.Trade = &t
	}

	return resp
}

// buildTradeResponse converts a domain trade to its JSON shape.
func buildTradeResponse(t *domain.Trade) tradeResponse {
	return tradeResponse{
		TradeID:     t.TradeID,
		OrderID:     t.OrderID,
		Symbol:      t.Symbol,
		Side:        string(t.Side),
		Price:       domain.CentsToYuan(t.Price),
		Quantity:    t.Quantity,
		Commission:  domain.CentsToYuan(t.Commission),
		RealizedPnL: domain.CentsToYuan(t.RealizedPnL),
		ExecutedAt:  t.ExecutedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// mapOrderError maps domain errors to HTTP responses for order endpoints.
func mapOrderError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		WriteError(w, http.StatusNotFound, "account_not_found", "Account not found")
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", "Order not found")
	case errors.Is(err, domain.ErrOrderNotPending):
		WriteError(w, http.StatusConflict, "order_not_pending", "Order is no longer pending")
	case errors.Is(err, domain.ErrInvalidSymbol):
		WriteError(w, http.StatusBadRequest, "invalid_symbol", "Symbol is not a valid A-share code")
	case errors.Is(err, domain.ErrInvalidQuantity):
		WriteError(w, http.StatusBadRequest, "invalid_quantity", "Quantity must be a positive multiple of the lot size")
	case errors.Is(err, domain.ErrOrderValueTooSmall):
		WriteError(w, http.StatusBadRequest, "order_value_too_small", "Order value is below the minimum")
	case errors.Is(err, domain.ErrPriceOutOfBand):
		WriteError(w, http.StatusBadRequest, "price_out_of_band", "Limit price is outside today's price band")
	case errors.Is(err, domain.ErrSessionClosed):
		WriteError(w, http.StatusConflict, "session_closed", "The trading session is closed")
	case errors.Is(err, domain.ErrSymbolSuspended):
		WriteError(w, http.StatusConflict, "symbol_suspended", "The symbol is suspended from trading")
	case errors.Is(err, domain.ErrPriceLimitBlocked):
		WriteError(w, http.StatusConflict, "price_limit_blocked", "This side cannot trade at the price limit")
	case errors.Is(err, domain.ErrInsufficientFunds):
		WriteError(w, http.StatusConflict, "insufficient_funds", "Insufficient available cash")
	case errors.Is(err, domain.ErrInsufficientShares):
		WriteError(w, http.StatusConflict, "insufficient_shares", "Insufficient sellable shares")
	case errors.Is(err, domain.ErrQuoteFetchTimeout):
		WriteError(w, http.StatusGatewayTimeout, "quote_fetch_timeout", "Quote fetch timed out")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
