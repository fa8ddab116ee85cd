// Package countbatch acumula en el cliente las ediciones de conteo físico y las persiste en lotes.
//
// Cada edición queda en un mapa de pendientes en memoria y en un DraftStore durable, de modo que
// una recarga del cliente retoma exactamente lo que no se alcanzó a enviar. El envío es
// at-least-once y last-write-wins por ítem.
package countbatch

import (
	"context"
	"sync"
)

// DraftStore buffer durable de ediciones pendientes, por campaña.
// El valor es la cadena tal como la escribió el operador ("" se distingue de "0").
type DraftStore interface {
	Save(ctx context.Context, campaignID, itemID, raw string) error
	Delete(ctx context.Context, campaignID string, itemIDs ...string) error
	Load(ctx context.Context, campaignID string) (map[string]string, error)
}

// MemoryDraftStore DraftStore de un solo proceso (tests y modo sin Redis).
type MemoryDraftStore struct {
	mu     sync.Mutex
	drafts map[string]map[string]string
}

// NewMemoryDraftStore crea un store vacío.
func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{drafts: map[string]map[string]string{}}
}

func (s *MemoryDraftStore) Save(_ context.Context, campaignID, itemID, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.drafts[campaignID]
	if !ok {
		m = map[string]string{}
		s.drafts[campaignID] = m
	}
	m[itemID] = raw
	return nil
}

func (s *MemoryDraftStore) Delete(_ context.Context, campaignID string, itemIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range itemIDs {
		delete(s.drafts[campaignID], id)
	}
	if len(s.drafts[campaignID]) == 0 {
		delete(s.drafts, campaignID)
	}
	return nil
}

func (s *MemoryDraftStore) Load(_ context.Context, campaignID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.drafts[campaignID]))
	for k, v := range s.drafts[campaignID] {
		out[k] = v
	}
	return out, nil
}
