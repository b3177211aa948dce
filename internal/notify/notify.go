// Package notify delivers order event webhooks. Subscriptions are per
// account and event; delivery is fire-and-forget over HTTP POST.
package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/hzfeng/papertrade/internal/domain"
	"github.com/hzfeng/papertrade/internal/store"
)

// Valid webhook event types.
var validEvents = map[string]bool{
	"order.filled":    true,
	"order.cancelled": true,
}

// AccountDirectory answers whether an account id is registered. The
// ledger satisfies it.
type AccountDirectory interface {
	Exists(accountID string) bool
}

// UpsertRequest represents the input for webhook registration.
type UpsertRequest struct {
	AccountID string
	URL       string
	Events    []string
}

// Service handles webhook CRUD and event dispatch.
type Service struct {
	store    *store.WebhookStore
	accounts AccountDirectory
	client   *http.Client
}

// NewService creates a Service with the given delivery timeout.
func NewService(webhookStore *store.WebhookStore, accounts AccountDirectory, timeout time.Duration) *Service {
	return &Service{
		store:    webhookStore,
		accounts: accounts,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Upsert validates the request and creates or updates webhook
// subscriptions, one per (account, event) pair. Returns the resulting
// webhooks and whether any new subscription was created.
func (s *Service) Upsert(req UpsertRequest) ([]*domain.Webhook, bool, error) {
	if !s.accounts.Exists(req.AccountID) {
		return nil, false, domain.ErrAccountNotFound
	}

	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[string]bool, len(req.Events))
	dedupedEvents := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !validEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + event + ". Must be one of: order.filled, order.cancelled",
			}
		}
		if !seen[event] {
			seen[event] = true
			dedupedEvents = append(dedupedEvents, event)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(dedupedEvents))

	for _, event := range dedupedEvents {
		w := &domain.Webhook{
			WebhookID: uuid.New().String(),
			AccountID: req.AccountID,
			Event:     event,
			URL:       req.URL,
			CreatedAt: now,
			UpdatedAt: now,
		}

		created := s.store.Upsert(w)
		if created {
			anyCreated = true
			webhooks = append(webhooks, w)
		} else {
			// The pair already existed; return the refreshed subscription.
			if existing := s.store.GetByAccountEvent(req.AccountID, event); existing != nil {
				webhooks = append(webhooks, existing)
			}
		}
	}

	return webhooks, anyCreated, nil
}

// List validates the account exists and returns its subscriptions.
func (s *Service) List(accountID string) ([]*domain.Webhook, error) {
	if !s.accounts.Exists(accountID) {
		return nil, domain.ErrAccountNotFound
	}
	return s.store.ListByAccount(accountID), nil
}

// Delete removes a webhook subscription by id.
func (s *Service) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

// orderFilledPayload is the JSON payload for order.filled webhooks.
type orderFilledPayload struct {
	Event     string          `json:"event"`
	Timestamp string          `json:"timestamp"`
	Data      orderFilledData `json:"data"`
}

type orderFilledData struct {
	TradeID     string  `json:"trade_id"`
	AccountID   string  `json:"account_id"`
	OrderID     int64   `json:"order_id"`
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Kind        string  `json:"kind"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
	Commission  float64 `json:"commission"`
	RealizedPnL float64 `json:"realized_pnl"`
	Status      string  `json:"status"`
}

// orderCancelledPayload is the JSON payload for order.cancelled webhooks.
type orderCancelledPayload struct {
	Event     string             `json:"event"`
	Timestamp string             `json:"timestamp"`
	Data      orderCancelledData `json:"data"`
}

type orderCancelledData struct {
	AccountID  string  `json:"account_id"`
	OrderID    int64   `json:"order_id"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Kind       string  `json:"kind"`
	LimitPrice float64 `json:"limit_price"`
	Quantity   int64   `json:"quantity"`
	Status     string  `json:"status"`
}

// DispatchOrderFilled sends an order.filled notification to the
// account's subscription, if any. Fire-and-forget.
func (s *Service) DispatchOrderFilled(order *domain.Order, trade *domain.Trade) {
	wh := s.store.GetByAccountEvent(order.AccountID, "order.filled")
	if wh == nil {
		return
	}

	payload := orderFilledPayload{
		Event:     "order.filled",
		Timestamp: trade.ExecutedAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: orderFilledData{
			TradeID:     trade.TradeID,
			AccountID:   order.AccountID,
			OrderID:     order.OrderID,
			Symbol:      order.Symbol,
			Side:        string(order.Side),
			Kind:        string(order.Kind),
			Price:       domain.CentsToYuan(trade.Price),
			Quantity:    trade.Quantity,
			Commission:  domain.CentsToYuan(trade.Commission),
			RealizedPnL: domain.CentsToYuan(trade.RealizedPnL),
			Status:      string(order.Status),
		},
	}

	go s.deliver(wh, "order.filled", payload)
}

// DispatchOrderCancelled sends an order.cancelled notification to the
// account's subscription, if any. Fire-and-forget.
func (s *Service) DispatchOrderCancelled(order *domain.Order) {
	wh := s.store.GetByAccountEvent(order.AccountID, "order.cancelled")
	if wh == nil {
		return
	}

	payload := orderCancelledPayload{
		Event:     "order.cancelled",
		Timestamp: time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: orderCancelledData{
			AccountID:  order.AccountID,
			OrderID:    order.OrderID,
			Symbol:     order.Symbol,
			Side:       string(order.Side),
			Kind:       string(order.Kind),
			LimitPrice: domain.CentsToYuan(order.LimitPrice),
			Quantity:   order.Quantity,
			Status:     string(order.Status),
		},
	}

	go s.deliver(wh, "order.cancelled", payload)
}

// deliver sends the payload via HTTP POST with the delivery headers.
// Errors are silently ignored.
func (s *Service) deliver(wh *domain.Webhook, eventType string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", eventType)

	resp, err := s.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
