package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/V4T54L/foodhub/internal/domain"
)

// MockStore is a mock implementation of domain.Store for testing.
type MockStore struct {
	mu        sync.Mutex
	Applied   []domain.MutationSpec
	Commit    domain.Commit
	ApplyErr  error
	ApplyFunc func(ctx context.Context, spec domain.MutationSpec) (domain.Commit, error)
}

func (m *MockStore) Apply(ctx context.Context, spec domain.MutationSpec) (domain.Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Applied = append(m.Applied, spec)
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, spec)
	}
	if m.ApplyErr != nil {
		return domain.Commit{}, m.ApplyErr
	}
	return m.Commit, nil
}

// MockReader implements the restaurant, menu and order readers.
type MockReader struct {
	mu          sync.Mutex
	Calls       int
	Menus       map[string]domain.RestaurantMenu
	Restaurants []domain.RestaurantMenu
	Categories  map[string][]domain.Category
	Items       map[string]domain.MenuItem
	Orders      map[string]domain.Order
	OrderList   []domain.Order
	ReadErr     error
}

func (m *MockReader) read() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	return m.ReadErr
}

func (m *MockReader) GetRestaurantMenu(ctx context.Context, id string) (*domain.RestaurantMenu, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	menu, ok := m.Menus[id]
	if !ok {
		return nil, domain.NewNotFound(domain.EntityRestaurant, id)
	}
	return &menu, nil
}

func (m *MockReader) ListRestaurants(ctx context.Context) ([]domain.RestaurantMenu, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	return m.Restaurants, nil
}

func (m *MockReader) ListCategories(ctx context.Context, restaurantID string) ([]domain.Category, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	return m.Categories[restaurantID], nil
}

func (m *MockReader) GetMenuItem(ctx context.Context, id string) (*domain.MenuItem, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	item, ok := m.Items[id]
	if !ok {
		return nil, domain.NewNotFound(domain.EntityMenuItem, id)
	}
	return &item, nil
}

func (m *MockReader) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	order, ok := m.Orders[id]
	if !ok {
		return nil, domain.NewNotFound(domain.EntityOrder, id)
	}
	return &order, nil
}

func (m *MockReader) ListOrders(ctx context.Context) ([]domain.Order, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	return m.OrderList, nil
}

func (m *MockReader) ListRestaurantOrders(ctx context.Context, restaurantID string) ([]domain.Order, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	var out []domain.Order
	for _, o := range m.OrderList {
		if o.RestaurantID == restaurantID {
			out = append(out, o)
		}
	}
	return out, nil
}

// MockCacheStore is an in-memory domain.CacheStore with injectable failures.
type MockCacheStore struct {
	mu            sync.Mutex
	Values        map[domain.CacheKey][]byte
	Generations   map[domain.CacheKey]int64
	Invalidated   []domain.CacheKey
	SetCalls      int
	GetErr        error
	InvalidateErr error
	GenerationErr error
	SetErr        error
}

func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{
		Values:      make(map[domain.CacheKey][]byte),
		Generations: make(map[domain.CacheKey]int64),
	}
}

func (m *MockCacheStore) Get(ctx context.Context, key domain.CacheKey) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	v, ok := m.Values[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return v, nil
}

func (m *MockCacheStore) Invalidate(ctx context.Context, keys ...domain.CacheKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InvalidateErr != nil {
		return m.InvalidateErr
	}
	for _, k := range keys {
		delete(m.Values, k)
		m.Generations[k]++
	}
	m.Invalidated = append(m.Invalidated, keys...)
	return nil
}

func (m *MockCacheStore) Generation(ctx context.Context, key domain.CacheKey) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GenerationErr != nil {
		return 0, m.GenerationErr
	}
	return m.Generations[key], nil
}

func (m *MockCacheStore) SetIfGeneration(ctx context.Context, key domain.CacheKey, value []byte, ttl time.Duration, gen int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls++
	if m.SetErr != nil {
		return false, m.SetErr
	}
	if m.Generations[key] != gen {
		return false, nil
	}
	m.Values[key] = value
	return true, nil
}

// Has reports whether key currently holds a value.
func (m *MockCacheStore) Has(key domain.CacheKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Values[key]
	return ok
}

// MockEventBroker is a mock implementation of domain.EventBroker for testing.
// PublishErrs are returned by successive calls before PublishErr applies.
type MockEventBroker struct {
	mu          sync.Mutex
	Published   []domain.DomainEvent
	Calls       int
	PublishErrs []error
	PublishErr  error
	Closed      bool
}

func (m *MockEventBroker) Publish(ctx context.Context, event domain.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if len(m.PublishErrs) > 0 {
		err := m.PublishErrs[0]
		m.PublishErrs = m.PublishErrs[1:]
		if err != nil {
			return err
		}
	} else if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Published = append(m.Published, event)
	return nil
}

func (m *MockEventBroker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Events returns a copy of the published events.
func (m *MockEventBroker) Events() []domain.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DomainEvent(nil), m.Published...)
}

// MockJournal is a mock implementation of domain.FailedEventJournal.
type MockJournal struct {
	mu          sync.Mutex
	Events      []domain.DomainEvent
	Truncated   bool
	WriteErr    error
	TruncateErr error
}

func (m *MockJournal) Write(ctx context.Context, event domain.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockJournal) Replay(ctx context.Context, handler func(event domain.DomainEvent) error) error {
	m.mu.Lock()
	events := append([]domain.DomainEvent(nil), m.Events...)
	m.mu.Unlock()
	for _, e := range events {
		if err := handler(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockJournal) Truncate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TruncateErr != nil {
		return m.TruncateErr
	}
	m.Events = nil
	m.Truncated = true
	return nil
}

// MockEventStreamReader is a mock implementation of domain.EventStreamReader.
type MockEventStreamReader struct {
	mu              sync.Mutex
	ReadBatchResult []domain.DomainEvent
	AckedMessageIDs []string
	ReadErr         error
	AckErr          error
}

func (m *MockEventStreamReader) ReadEvents(ctx context.Context, group, consumer string, count int) ([]domain.DomainEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	batch := m.ReadBatchResult
	m.ReadBatchResult = nil
	return batch, nil
}

func (m *MockEventStreamReader) AcknowledgeEvents(ctx context.Context, group string, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.AckedMessageIDs = append(m.AckedMessageIDs, messageIDs...)
	return nil
}

// MockStreamAdminRepository is a mock implementation of domain.StreamAdminRepository.
type MockStreamAdminRepository struct {
	mu        sync.Mutex
	Groups    []domain.ConsumerGroupInfo
	Consumers []domain.ConsumerInfo
	Summary   *domain.PendingMessageSummary
	Pending   []domain.PendingMessageDetail
	Claimed   []domain.DomainEvent
	Acked     []string
	TrimmedTo int64
	LastQuery domain.PendingQuery
	Err       error
}

func (m *MockStreamAdminRepository) GetGroupInfo(ctx context.Context, stream string) ([]domain.ConsumerGroupInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Groups, m.Err
}

func (m *MockStreamAdminRepository) GetConsumerInfo(ctx context.Context, stream, group string) ([]domain.ConsumerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Consumers, m.Err
}

func (m *MockStreamAdminRepository) GetPendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Summary, m.Err
}

func (m *MockStreamAdminRepository) GetPendingMessages(ctx context.Context, stream, group string, q domain.PendingQuery) ([]domain.PendingMessageDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastQuery = q
	return m.Pending, m.Err
}

func (m *MockStreamAdminRepository) ClaimMessages(ctx context.Context, stream, group, consumer string, minIdleTime time.Duration, messageIDs []string) ([]domain.DomainEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Claimed, m.Err
}

func (m *MockStreamAdminRepository) AcknowledgeMessages(ctx context.Context, stream, group string, messageIDs ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	m.Acked = append(m.Acked, messageIDs...)
	return int64(len(messageIDs)), nil
}

func (m *MockStreamAdminRepository) TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	m.TrimmedTo = maxLen
	return 0, nil
}
