package main

import (
	"context"
	"fmt"
	"time"
)

// This file contains mocks definitions needed to perform unit tests.

// MockCatalogService implements a fake CatalogServiceProvider. Each
// operation calls its function field which must be set by the test.
type MockCatalogService struct {
	ListBooksFunc     func(ctx context.Context, page int) (ListView[BookView], error)
	GetBookFunc       func(ctx context.Context, id int64) (BookView, error)
	ListAuthorsFunc   func(ctx context.Context, page int) (ListView[AuthorView], error)
	GetAuthorFunc     func(ctx context.Context, id int64) (AuthorView, error)
	BorrowedByFunc    func(ctx context.Context, userID int64) ([]LoanView, error)
	AuthenticateFunc  func(ctx context.Context, username, password string) (User, error)
	LoadBooksFunc     func(ctx context.Context, books []Book) error
	LoadInstancesFunc func(ctx context.Context, instances []BookInstance) error
	RecordChangeFunc  func(ctx context.Context, user User, entry LogEntry) error
	InvalidateFunc    func(ctx context.Context)
	RecentActionsFunc func(ctx context.Context, limit int) ([]LogEntry, error)
	ObjectHistoryFunc func(ctx context.Context, contentType, objectID string) ([]LogEntry, error)
}

func (m *MockCatalogService) ListBooks(ctx context.Context, page int) (ListView[BookView], error) {
	return m.ListBooksFunc(ctx, page)
}

func (m *MockCatalogService) GetBook(ctx context.Context, id int64) (BookView, error) {
	return m.GetBookFunc(ctx, id)
}

func (m *MockCatalogService) ListAuthors(ctx context.Context, page int) (ListView[AuthorView], error) {
	return m.ListAuthorsFunc(ctx, page)
}

func (m *MockCatalogService) GetAuthor(ctx context.Context, id int64) (AuthorView, error) {
	return m.GetAuthorFunc(ctx, id)
}

func (m *MockCatalogService) BorrowedBy(ctx context.Context, userID int64) ([]LoanView, error) {
	return m.BorrowedByFunc(ctx, userID)
}

func (m *MockCatalogService) Authenticate(ctx context.Context, username, password string) (User, error) {
	return m.AuthenticateFunc(ctx, username, password)
}

func (m *MockCatalogService) LoadBooks(ctx context.Context, books []Book) error {
	return m.LoadBooksFunc(ctx, books)
}

func (m *MockCatalogService) LoadInstances(ctx context.Context, instances []BookInstance) error {
	return m.LoadInstancesFunc(ctx, instances)
}

func (m *MockCatalogService) RecordChange(ctx context.Context, user User, entry LogEntry) error {
	return m.RecordChangeFunc(ctx, user, entry)
}

// Invalidate is a no-op unless InvalidateFunc is set.
func (m *MockCatalogService) Invalidate(ctx context.Context) {
	if m.InvalidateFunc != nil {
		m.InvalidateFunc(ctx)
	}
}

func (m *MockCatalogService) RecentActions(ctx context.Context, limit int) ([]LogEntry, error) {
	return m.RecentActionsFunc(ctx, limit)
}

func (m *MockCatalogService) ObjectHistory(ctx context.Context, contentType, objectID string) ([]LogEntry, error) {
	return m.ObjectHistoryFunc(ctx, contentType, objectID)
}

// MockQueuer implements a fake Queuer.
type MockQueuer struct {
	PushFunc func(ctx context.Context, qid string, entry LogEntry) error
	PopFunc  func(ctx context.Context, qids ...string) (string, LogEntry, error)
}

func (m *MockQueuer) Push(ctx context.Context, qid string, entry LogEntry) error {
	return m.PushFunc(ctx, qid, entry)
}

func (m *MockQueuer) Pop(ctx context.Context, qids ...string) (string, LogEntry, error) {
	return m.PopFunc(ctx, qids...)
}

// MockLogEntryStorage implements a fake LogEntryStorage.
type MockLogEntryStorage struct {
	AddFunc       func(ctx context.Context, entry LogEntry) error
	RecentFunc    func(ctx context.Context, limit int) ([]LogEntry, error)
	ForObjectFunc func(ctx context.Context, contentType, objectID string) ([]LogEntry, error)
}

func (m *MockLogEntryStorage) Add(ctx context.Context, entry LogEntry) error {
	return m.AddFunc(ctx, entry)
}

func (m *MockLogEntryStorage) Recent(ctx context.Context, limit int) ([]LogEntry, error) {
	return m.RecentFunc(ctx, limit)
}

func (m *MockLogEntryStorage) ForObject(ctx context.Context, contentType, objectID string) ([]LogEntry, error) {
	return m.ForObjectFunc(ctx, contentType, objectID)
}

func (m *MockLogEntryStorage) Close() error {
	return nil
}

// MockCacher records cached values in memory under generation scoped keys.
// BeforeSet, when set, runs between the cache miss and the write.
type MockCacher struct {
	values      map[string][]byte
	generation  int
	Invalidated int
	BeforeSet   func()
}

func NewMockCacher() *MockCacher {
	return &MockCacher{values: make(map[string][]byte)}
}

func (m *MockCacher) Key(_ context.Context, name string) (string, error) {
	return fmt.Sprintf("%d:%s", m.generation, name), nil
}

func (m *MockCacher) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	data, ok := m.values[key]
	if !ok {
		return false, nil
	}
	return true, jsonCodec.Unmarshal(data, dest)
}

func (m *MockCacher) Set(_ context.Context, key string, value interface{}) error {
	if m.BeforeSet != nil {
		m.BeforeSet()
	}
	data, err := jsonCodec.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = data
	return nil
}

func (m *MockCacher) Invalidate(context.Context) error {
	m.generation++
	m.Invalidated++
	return nil
}

// MockClocker implements a fake Clocker.
type MockClocker struct {
	MockNow time.Time
}

// NewMockClocker returns a mocked instance with fixed time.
func NewMockClocker() *MockClocker {
	return &MockClocker{time.Date(2023, 0o7, 0o2, 0o0, 0o0, 0o0, 0o00000000, time.UTC)}
}

// Now returns an already defined time to be used as mock. This
// equals to `Sun, 02 Jul 2023 00:00:00 UTC` in time.RFC1123 format.
func (mck *MockClocker) Now() time.Time {
	return mck.MockNow
}

// MockUIDHandler implements a fake UIDHandler.
type MockUIDHandler struct {
	MockedUID string
	Valid     bool
}

// NewMockUIDHandler returns a mocked instance with predictable id.
func NewMockUIDHandler(id string, valid bool) *MockUIDHandler {
	return &MockUIDHandler{MockedUID: id, Valid: valid}
}

// Generate constructs a predictable id to be used as mock. An empty
// prefix returns the bare id, like the real handler does for uuids.
func (muid *MockUIDHandler) Generate(prefix string) string {
	if prefix == "" {
		return muid.MockedUID
	}
	return prefix + ":" + muid.MockedUID
}

// IsValid mocks IsValid behavior by providing configured status.
func (muid *MockUIDHandler) IsValid(_, _ string) bool {
	return muid.Valid
}
