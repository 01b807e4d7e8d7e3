// Package repository содержит хранилище пользовательских сессий бота.
package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/mmeshcher/questbot-system/internal/model"
)

// ErrSessionExists возвращается при попытке создать сессию с уже занятым идентификатором.
var (
	ErrSessionExists = errors.New("session already exists")
	// ErrSessionNotFound возвращается, если сессия не найдена.
	ErrSessionNotFound = errors.New("session not found")
)

// SessionStore описывает контракт хранилища сессий. Ядро бота между
// вызовами состояния не хранит: всё долговременное живёт здесь.
type SessionStore interface {
	Close() error
	Create(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.SessionRecord, error)
	Put(ctx context.Context, rec *model.SessionRecord) error
	List(ctx context.Context) ([]model.SessionRecord, error)
}

// MemoryStore хранит сессии в памяти процесса; используется,
// когда адрес базы данных не задан.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.SessionRecord
}

// NewMemoryStore создаёт пустое хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]model.SessionRecord),
	}
}

// Close освобождает ресурсы хранилища.
func (s *MemoryStore) Close() error { return nil }

// Create регистрирует новую сессию с пустыми учётными данными.
func (s *MemoryStore) Create(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; ok {
		return ErrSessionExists
	}

	s.sessions[id] = model.SessionRecord{ID: id, UpdatedAt: time.Now()}
	return nil
}

// Get возвращает сессию по идентификатору.
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &rec, nil
}

// Put сохраняет сессию, создавая её при отсутствии.
func (s *MemoryStore) Put(ctx context.Context, rec *model.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := *rec
	saved.UpdatedAt = time.Now()
	s.sessions[saved.ID] = saved
	return nil
}

// List возвращает все сессии в стабильном порядке идентификаторов.
func (s *MemoryStore) List(ctx context.Context) ([]model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.SessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	return records, nil
}
