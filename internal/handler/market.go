package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hzfeng/papertrade/internal/domain"
	"github.com/hzfeng/papertrade/internal/service"
)

// MarketHandler handles HTTP requests for market data endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// quoteResponse is the JSON response for GET /market/quote/{symbol}.
type quoteResponse struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	PrevClose float64 `json:"prev_close"`
	LimitUp   float64 `json:"limit_up"`
	LimitDown float64 `json:"limit_down"`
	Suspended bool    `json:"suspended"`
	AsOf      string  `json:"as_of"`
}

// statusResponse is the JSON response for GET /market/status.
type statusResponse struct {
	Open       bool   `json:"open"`
	TradingDay string `json:"trading_day"`
	NextOpen   string `json:"next_open"`
}

// Quote handles GET /market/quote/{symbol}.
func (h *MarketHandler) Quote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	q, err := h.marketSvc.Quote(r.Context(), symbol)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, quoteResponse{
		Symbol:    q.Symbol,
		Name:      q.Name,
		Price:     domain.CentsToYuan(q.Price),
		PrevClose: domain.CentsToYuan(q.PrevClose),
		LimitUp:   domain.CentsToYuan(q.LimitUp),
		LimitDown: domain.CentsToYuan(q.LimitDown),
		Suspended: q.Suspended,
		AsOf:      q.AsOf.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// Status handles GET /market/status.
func (h *MarketHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.marketSvc.Status()

	WriteJSON(w, http.StatusOK, statusResponse{
		Open:       status.Open,
		TradingDay: status.TradingDay,
		NextOpen:   status.NextOpen.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// mapMarketError maps domain errors to HTTP responses for market endpoints.
func mapMarketError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSymbol):
		WriteError(w, http.StatusBadRequest, "invalid_symbol", "Symbol is not a valid A-share code")
	case errors.Is(err, domain.ErrQuoteFetchTimeout):
		WriteError(w, http.StatusGatewayTimeout, "quote_fetch_timeout", "Quote fetch timed out")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
