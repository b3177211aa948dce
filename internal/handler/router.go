package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hzfeng/papertrade/internal/notify"
	"github.com/hzfeng/papertrade/internal/service"
)

// NewRouter creates a chi router with all routes registered, request id
// assignment, request logging, and Content-Type validation middleware.
func NewRouter(
	accountSvc *service.AccountService,
	orderSvc *service.OrderService,
	marketSvc *service.MarketService,
	boardSvc *service.LeaderboardService,
	notifySvc *notify.Service,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestID)
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	// Create handlers.
	accountH := NewAccountHandler(accountSvc, orderSvc)
	orderH := NewOrderHandler(orderSvc)
	marketH := NewMarketHandler(marketSvc)
	boardH := NewLeaderboardHandler(boardSvc)
	webhookH := NewWebhookHandler(notifySvc)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Account routes.
	r.Post("/accounts", accountH.Register)
	r.Get("/accounts/{account_id}/summary", accountH.Summary)
	r.Get("/accounts/{account_id}/trades", accountH.Trades)
	r.Get("/accounts/{account_id}/orders", accountH.Orders)

	// Order routes.
	r.Post("/orders", orderH.Place)
	r.Get("/orders/{order_id}", orderH.Get)
	r.Delete("/orders/{order_id}", orderH.Cancel)

	// Market routes.
	r.Get("/market/quote/{symbol}", marketH.Quote)
	r.Get("/market/status", marketH.Status)

	// Leaderboard.
	r.Get("/leaderboard", boardH.Standings)

	// Webhook routes.
	r.Post("/accounts/{account_id}/webhooks", webhookH.Upsert)
	r.Get("/accounts/{account_id}/webhooks", webhookH.List)
	r.Delete("/webhooks/{webhook_id}", webhookH.Delete)

	return r
}

type ctxKey int

const requestIDKey ctxKey = 0

// requestID assigns each request a uuid, echoed in the X-Request-ID
// response header. A caller-supplied id is kept so client retries stay
// correlated.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestLogging returns middleware that logs each request's method,
// path, status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("request_id", requestIDFrom(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST,
// PUT, and PATCH requests. If the Content-Type header doesn't start
// with "application/json", it returns 400 Bad Request before the
// handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
