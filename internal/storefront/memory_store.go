package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// CleanupInterval is how often MemoryStore drops expired carts.
const CleanupInterval = 30 * time.Second

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore keeps carts in process memory. Carts expire ttl after their
// last save.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		carts:       make(map[string]memoryEntry),
		ttl:         ttl,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expire()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for token, e := range s.carts {
		if now.After(e.expiresAt) {
			delete(s.carts, token)
		}
	}
}

// Carts are stored serialised so callers never share line slices.
func (s *MemoryStore) Load(_ context.Context, token string) (*Cart, error) {
	s.mu.RLock()
	e, ok := s.carts[token]
	s.mu.RUnlock()
	if !ok || s.now().After(e.expiresAt) {
		return nil, ErrCartNotFound
	}
	var cart Cart
	if err := json.Unmarshal(e.data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

func (s *MemoryStore) Save(_ context.Context, cart *Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[cart.Token] = memoryEntry{data: data, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, token)
	return nil
}

// Close stops the background cleanup and waits for it to finish
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	s.wg.Wait()
	return nil
}
