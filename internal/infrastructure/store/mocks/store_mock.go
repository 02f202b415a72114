package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/example/ec-storefront/internal/domain/model"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

// MockStore wraps an in-memory store and lets tests observe and fail
// individual operations.
type MockStore struct {
	*store.MemoryStore

	mu sync.Mutex

	// For tracking calls in tests
	AppendEntryCalls    []AppendEntryCall
	AppendEntryErr      error
	AppendEntryCallback func(ctx context.Context, entry *model.InventoryLogEntry, expectedVersion int64) error

	CreateOrderCalls    int
	CreateOrderErr      error
	CreateOrderCallback func(ctx context.Context, o *model.Order) error

	UpdateOrderStatusErr error
	ClearCartErr         error
}

// AppendEntryCall records parameters passed to AppendEntry
type AppendEntryCall struct {
	Entry           model.InventoryLogEntry
	ExpectedVersion int64
}

// NewMockStore creates a new MockStore
func NewMockStore() *MockStore {
	return &MockStore{MemoryStore: store.NewMemoryStore()}
}

var _ store.Store = (*MockStore)(nil)

func (m *MockStore) AppendEntry(ctx context.Context, entry *model.InventoryLogEntry, expectedVersion int64) error {
	m.mu.Lock()
	m.AppendEntryCalls = append(m.AppendEntryCalls, AppendEntryCall{Entry: *entry, ExpectedVersion: expectedVersion})
	callback, injected := m.AppendEntryCallback, m.AppendEntryErr
	m.mu.Unlock()

	if callback != nil {
		if err := callback(ctx, entry, expectedVersion); err != nil {
			return err
		}
	}
	if injected != nil {
		return injected
	}
	return m.MemoryStore.AppendEntry(ctx, entry, expectedVersion)
}

// AppendedOfType returns the recorded AppendEntry calls for one change type.
func (m *MockStore) AppendedOfType(ct model.ChangeType) []model.InventoryLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.InventoryLogEntry
	for _, c := range m.AppendEntryCalls {
		if c.Entry.ChangeType == ct {
			out = append(out, c.Entry)
		}
	}
	return out
}

func (m *MockStore) CreateOrder(ctx context.Context, o *model.Order) error {
	m.mu.Lock()
	m.CreateOrderCalls++
	callback, injected := m.CreateOrderCallback, m.CreateOrderErr
	m.mu.Unlock()

	if callback != nil {
		if err := callback(ctx, o); err != nil {
			return err
		}
	}
	if injected != nil {
		return injected
	}
	return m.MemoryStore.CreateOrder(ctx, o)
}

func (m *MockStore) UpdateOrderStatus(ctx context.Context, id string, from, to model.OrderStatus, at time.Time) error {
	m.mu.Lock()
	injected := m.UpdateOrderStatusErr
	m.mu.Unlock()
	if injected != nil {
		return injected
	}
	return m.MemoryStore.UpdateOrderStatus(ctx, id, from, to, at)
}

func (m *MockStore) ClearCart(ctx context.Context, userID string) error {
	m.mu.Lock()
	injected := m.ClearCartErr
	m.mu.Unlock()
	if injected != nil {
		return injected
	}
	return m.MemoryStore.ClearCart(ctx, userID)
}

// SetAppendEntryCallback replaces the AppendEntry hook under the mock's lock.
func (m *MockStore) SetAppendEntryCallback(fn func(ctx context.Context, entry *model.InventoryLogEntry, expectedVersion int64) error) {
	m.mu.Lock()
	m.AppendEntryCallback = fn
	m.mu.Unlock()
}
