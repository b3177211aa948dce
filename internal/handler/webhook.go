package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hzfeng/papertrade/internal/domain"
	"github.com/hzfeng/papertrade/internal/notify"
)

// WebhookHandler handles HTTP requests for webhook subscriptions.
type WebhookHandler struct {
	notifySvc *notify.Service
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(notifySvc *notify.Service) *WebhookHandler {
	return &WebhookHandler{notifySvc: notifySvc}
}

// upsertWebhookRequest is the JSON request body for
// POST /accounts/{account_id}/webhooks.
type upsertWebhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// webhookResponse is a single webhook subscription.
type webhookResponse struct {
	WebhookID string `json:"webhook_id"`
	AccountID string `json:"account_id"`
	Event     string `json:"event"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// webhookListResponse is the JSON response for webhook upsert and list.
type webhookListResponse struct {
	Webhooks []webhookResponse `json:"webhooks"`
}

// Upsert handles POST /accounts/{account_id}/webhooks.
func (h *WebhookHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	var req upsertWebhookRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	webhooks, anyCreated, err := h.notifySvc.Upsert(notify.UpsertRequest{
		AccountID: accountID,
		URL:       req.URL,
		Events:    req.Events,
	})
	if err != nil {
		mapWebhookError(w, err)
		return
	}

	status := http.StatusOK
	if anyCreated {
		status = http.StatusCreated
	}

	WriteJSON(w, status, webhookListResponse{
		Webhooks: buildWebhookResponses(webhooks),
	})
}

// List handles GET /accounts/{account_id}/webhooks.
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	webhooks, err := h.notifySvc.List(accountID)
	if err != nil {
		mapWebhookError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, webhookListResponse{
		Webhooks: buildWebhookResponses(webhooks),
	})
}

// Delete handles DELETE /webhooks/{webhook_id}.
func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	webhookID := chi.URLParam(r, "webhook_id")

	if err := h.notifySvc.Delete(webhookID); err != nil {
		mapWebhookError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// buildWebhookResponses converts domain webhooks to response webhooks.
func buildWebhookResponses(webhooks []*domain.Webhook) []webhookResponse {
	result := make([]webhookResponse, len(webhooks))
	for i, wh := range webhooks {
		result[i] = webhookResponse{
			WebhookID: wh.WebhookID,
			AccountID: wh.AccountID,
			Event:     wh.Event,
			URL:       wh.URL,
			CreatedAt: wh.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			UpdatedAt: wh.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	return result
}

// mapWebhookError maps domain errors to HTTP responses for webhook endpoints.
func mapWebhookError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		WriteError(w, http.StatusNotFound, "account_not_found", "Account not found")
	case errors.Is(err, domain.ErrWebhookNotFound):
		WriteError(w, http.StatusNotFound, "webhook_not_found", "Webhook not found")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
