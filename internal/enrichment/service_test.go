package enrichment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/profiq/meetup-analysis-kinetica/internal/cache"
	"github.com/profiq/meetup-analysis-kinetica/internal/domain"
)

// MockStoreLookup is a mock implementation of StoreLookup
type MockStoreLookup struct {
	mock.Mock
}

func (m *MockStoreLookup) LookupMany(ctx context.Context, eventIDs []string) map[string]domain.Attributes {
	args := m.Called(ctx, eventIDs)
	return args.Get(0).(map[string]domain.Attributes)
}

// MockRemoteLookup is a mock implementation of RemoteLookup
type MockRemoteLookup struct {
	mock.Mock
}

func (m *MockRemoteLookup) LookupMany(ctx context.Context, eventIDs []string) map[string]domain.LookupResult {
	args := m.Called(ctx, eventIDs)
	return args.Get(0).(map[string]domain.LookupResult)
}

// MockAttributeReader is a mock implementation of repository.AttributeReader
type MockAttributeReader struct {
	mock.Mock
}

func (m *MockAttributeReader) FindAttributes(ctx context.Context, eventIDs []string) (map[string]domain.Attributes, error) {
	args := m.Called(ctx, eventIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.Attributes), args.Error(1)
}

func strPtr(s string) *string { return &s }
func int64Ptr(n int64) *int64 { return &n }
func int32Ptr(n int32) *int32 { return &n }

func TestService_Resolve_StoreHitSkipsRemote(t *testing.T) {
	store := new(MockStoreLookup)
	remote := new(MockRemoteLookup)
	svc := NewService(nil, store, remote, zap.NewNop())

	store.On("LookupMany", mock.Anything, []string{"evt1"}).
		Return(map[string]domain.Attributes{"evt1": {City: strPtr("Berlin")}})

	got := svc.Resolve(context.Background(), []string{"evt1"})

	require.Len(t, got, 1)
	assert.Equal(t, "Berlin", *got["evt1"].City)
	assert.Nil(t, got["evt1"].Country)
	assert.Nil(t, got["evt1"].GroupMembers)
	assert.Nil(t, got["evt1"].GroupEvents)
	remote.AssertNotCalled(t, "LookupMany", mock.Anything, mock.Anything)
}

func TestService_Resolve_RemoteOnlyForStoreMisses(t *testing.T) {
	store := new(MockStoreLookup)
	remote := new(MockRemoteLookup)
	svc := NewService(nil, store, remote, zap.NewNop())

	store.On("LookupMany", mock.Anything, []string{"evt1", "evt2", "evt3"}).
		Return(map[string]domain.Attributes{"evt2": {Country: strPtr("de")}})
	remote.On("LookupMany", mock.Anything, []string{"evt1", "evt3"}).
		Return(map[string]domain.LookupResult{
			"evt1": domain.Found(domain.Attributes{City: strPtr("Praha"), GroupMembers: int64Ptr(3)}),
			"evt3": domain.NotFound(),
		})

	got := svc.Resolve(context.Background(), []string{"evt1", "evt2", "evt3"})

	require.Len(t, got, 3)
	assert.Equal(t, "Praha", *got["evt1"].City)
	assert.Equal(t, "de", *got["evt2"].Country)
	assert.True(t, got["evt3"].IsEmpty())
	remote.AssertExpectations(t)
}

func TestService_Resolve_TotalOnRemoteFailure(t *testing.T) {
	store := new(MockStoreLookup)
	remote := new(MockRemoteLookup)
	svc := NewService(nil, store, remote, zap.NewNop())

	ids := []string{"evt1", "evt2"}
	store.On("LookupMany", mock.Anything, ids).Return(map[string]domain.Attributes{})
	remote.On("LookupMany", mock.Anything, ids).Return(map[string]domain.LookupResult{
		"evt1": domain.LookupFailed("unexpected status 500"),
		"evt2": domain.LookupFailed("unexpected status 500"),
	})

	got := svc.Resolve(context.Background(), ids)

	require.Len(t, got, 2)
	for _, id := range ids {
		attrs, ok := got[id]
		assert.True(t, ok)
		assert.True(t, attrs.IsEmpty())
	}
}

func TestService_Resolve_DeduplicatesIDs(t *testing.T) {
	store := new(MockStoreLookup)
	remote := new(MockRemoteLookup)
	svc := NewService(nil, store, remote, zap.NewNop())

	store.On("LookupMany", mock.Anything, []string{"evt1", "evt2"}).Return(map[string]domain.Attributes{})
	remote.On("LookupMany", mock.Anything, []string{"evt1", "evt2"}).Return(map[string]domain.LookupResult{})

	got := svc.Resolve(context.Background(), []string{"evt1", "evt2", "evt1", "evt1"})

	assert.Len(t, got, 2)
	store.AssertNumberOfCalls(t, "LookupMany", 1)
	remote.AssertNumberOfCalls(t, "LookupMany", 1)
}

func TestService_Resolve_CacheHitSkipsStoreAndRemote(t *testing.T) {
	store := new(MockStoreLookup)
	remote := new(MockRemoteLookup)
	c := cache.NewMemory(time.Minute)
	c.Set(context.Background(), "evt1", domain.Attributes{City: strPtr("Wien")})

	svc := NewService(c, store, remote, zap.NewNop())

	got := svc.Resolve(context.Background(), []string{"evt1"})

	assert.Equal(t, "Wien", *got["evt1"].City)
	store.AssertNotCalled(t, "LookupMany", mock.Anything, mock.Anything)
	remote.AssertNotCalled(t, "LookupMany", mock.Anything, mock.Anything)
}

func TestService_Resolve_CachesFoundResultsOnly(t *testing.T) {
	store := new(MockStoreLookup)
	remote := new(MockRemoteLookup)
	c := cache.NewMemory(time.Minute)
	svc := NewService(c, store, remote, zap.NewNop())

	store.On("LookupMany", mock.Anything, mock.Anything).
		Return(map[string]domain.Attributes{"evt1": {City: strPtr("Berlin")}}).Once()
	remote.On("LookupMany", mock.Anything, []string{"evt2", "evt3"}).Return(map[string]domain.LookupResult{
		"evt2": domain.Found(domain.Attributes{GroupEvents: int32Ptr(7)}),
		"evt3": domain.LookupFailed("timeout"),
	}).Once()

	svc.Resolve(context.Background(), []string{"evt1", "evt2", "evt3"})

	_, ok1 := c.Get(context.Background(), "evt1")
	_, ok2 := c.Get(context.Background(), "evt2")
	_, ok3 := c.Get(context.Background(), "evt3")
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.False(t, ok3)

	// second batch: only the unresolved id goes out again
	store.On("LookupMany", mock.Anything, []string{"evt3"}).Return(map[string]domain.Attributes{}).Once()
	remote.On("LookupMany", mock.Anything, []string{"evt3"}).Return(map[string]domain.LookupResult{
		"evt3": domain.Found(domain.Attributes{Country: strPtr("at")}),
	}).Once()

	got := svc.Resolve(context.Background(), []string{"evt1", "evt2", "evt3"})

	assert.Equal(t, "at", *got["evt3"].Country)
	store.AssertExpectations(t)
	remote.AssertExpectations(t)
}

func TestService_Resolve_Empty(t *testing.T) {
	store := new(MockStoreLookup)
	remote := new(MockRemoteLookup)
	svc := NewService(nil, store, remote, zap.NewNop())

	got := svc.Resolve(context.Background(), nil)

	assert.Empty(t, got)
	store.AssertNotCalled(t, "LookupMany", mock.Anything, mock.Anything)
	remote.AssertNotCalled(t, "LookupMany", mock.Anything, mock.Anything)
}

func TestAttributeStore_LookupMany_AnyFieldCountsAsHit(t *testing.T) {
	reader := new(MockAttributeReader)
	store := NewAttributeStore(reader, zap.NewNop())

	reader.On("FindAttributes", mock.Anything, []string{"evt1", "evt2", "evt3"}).
		Return(map[string]domain.Attributes{
			"evt1": {City: strPtr("Berlin")},
			"evt2": {GroupMembers: int64Ptr(10)},
			"evt3": {},
		}, nil)

	hits := store.LookupMany(context.Background(), []string{"evt1", "evt2", "evt3"})

	assert.Len(t, hits, 2)
	assert.Contains(t, hits, "evt1")
	assert.Contains(t, hits, "evt2")
	assert.NotContains(t, hits, "evt3")
}

func TestAttributeStore_LookupMany_ReadErrorIsEmpty(t *testing.T) {
	reader := new(MockAttributeReader)
	store := NewAttributeStore(reader, zap.NewNop())

	reader.On("FindAttributes", mock.Anything, []string{"evt1"}).
		Return(nil, errors.New("illegal UTF-8 sequence"))

	hits := store.LookupMany(context.Background(), []string{"evt1"})

	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestAttributeStore_LookupMany_NoIDs(t *testing.T) {
	reader := new(MockAttributeReader)
	store := NewAttributeStore(reader, zap.NewNop())

	assert.Empty(t, store.LookupMany(context.Background(), nil))
	reader.AssertNotCalled(t, "FindAttributes", mock.Anything, mock.Anything)
}

func TestService_Resolve_BerlinFromStore(t *testing.T) {
	reader := new(MockAttributeReader)
	remote := new(MockRemoteLookup)
	svc := NewService(cache.NewMemory(time.Minute), NewAttributeStore(reader, zap.NewNop()), remote, zap.NewNop())

	reader.On("FindAttributes", mock.Anything, []string{"evt1"}).
		Return(map[string]domain.Attributes{"evt1": {City: strPtr("Berlin")}}, nil)

	got := svc.Resolve(context.Background(), []string{"evt1"})

	assert.Equal(t, "Berlin", *got["evt1"].City)
	assert.Nil(t, got["evt1"].Country)
	assert.Nil(t, got["evt1"].GroupMembers)
	assert.Nil(t, got["evt1"].GroupEvents)
	remote.AssertNotCalled(t, "LookupMany", mock.Anything, mock.Anything)
}

func TestService_Resolve_EmptyFoundResultNotCached(t *testing.T) {
	store := new(MockStoreLookup)
	remote := new(MockRemoteLookup)
	c := cache.NewMemory(time.Minute)
	svc := NewService(c, store, remote, zap.NewNop())

	// event exists remotely but has no venue and its group call failed
	store.On("LookupMany", mock.Anything, []string{"evt1"}).Return(map[string]domain.Attributes{})
	remote.On("LookupMany", mock.Anything, []string{"evt1"}).Return(map[string]domain.LookupResult{
		"evt1": domain.Found(domain.Attributes{}),
	}).Once()

	got := svc.Resolve(context.Background(), []string{"evt1"})
	assert.True(t, got["evt1"].IsEmpty())

	_, cached := c.Get(context.Background(), "evt1")
	assert.False(t, cached)

	remote.On("LookupMany", mock.Anything, []string{"evt1"}).Return(map[string]domain.LookupResult{
		"evt1": domain.Found(domain.Attributes{City: strPtr("Praha")}),
	}).Once()

	got = svc.Resolve(context.Background(), []string{"evt1"})

	assert.Equal(t, "Praha", *got["evt1"].City)
	remote.AssertNumberOfCalls(t, "LookupMany", 2)
}
