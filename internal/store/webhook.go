package store

import (
	"sync"

	"github.com/hzfeng/papertrade/internal/domain"
)

// subKey identifies a subscription: one webhook per account and event.
type subKey struct {
	accountID string
	event     string
}

// WebhookStore is a thread-safe in-memory store for webhook
// subscriptions, indexed by webhook id and by (account, event) pair.
type WebhookStore struct {
	mu    sync.RWMutex
	byID  map[string]*domain.Webhook
	byKey map[subKey]*domain.Webhook
}

// NewWebhookStore creates an empty WebhookStore.
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{
		byID:  make(map[string]*domain.Webhook),
		byKey: make(map[subKey]*domain.Webhook),
	}
}

// Upsert inserts or updates a subscription. When the (account, event)
// pair already exists its URL and UpdatedAt are refreshed and the
// webhook id stays stable; the id carried by w is discarded. Returns
// true if a new subscription was created.
func (s *WebhookStore) Upsert(w *domain.Webhook) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := subKey{w.AccountID, w.Event}
	if cur, ok := s.byKey[key]; ok {
		if cur.URL != w.URL {
			cur.URL = w.URL
			cur.UpdatedAt = w.UpdatedAt
		}
		return false
	}

	s.byID[w.WebhookID] = w
	s.byKey[key] = w
	return true
}

// Get retrieves a webhook by id. It returns domain.ErrWebhookNotFound
// if the webhook does not exist.
func (s *WebhookStore) Get(id string) (*domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrWebhookNotFound
	}
	return w, nil
}

// ListByAccount returns all webhooks for an account. Returns an empty
// slice if the account has no subscriptions.
func (s *WebhookStore) ListByAccount(accountID string) []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Webhook, 0, 2)
	for key, w := range s.byKey {
		if key.accountID == accountID {
			result = append(result, w)
		}
	}
	return result
}

// Delete removes a webhook by id, cleaning up both indexes. It returns
// domain.ErrWebhookNotFound if the webhook does not exist.
func (s *WebhookStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.byID[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}
	delete(s.byID, id)
	delete(s.byKey, subKey{w.AccountID, w.Event})
	return nil
}

// GetByAccountEvent returns the webhook for a specific account+event
// pair, or nil if no subscription exists.
func (s *WebhookStore) GetByAccountEvent(accountID, event string) *domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byKey[subKey{accountID, event}]
}
