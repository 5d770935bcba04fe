package cards

import (
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ilyaberbx/decentra-test-task/internal/domain"
)

type recordingListener struct {
	mu     sync.Mutex
	events [][]domain.Card
	err    error
}

func (l *recordingListener) OnCardsChanged(cards []domain.Card) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, cards)
	return l.err
}

func (l *recordingListener) eventCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	repo := newTestRepository(t)
	return NewService(repo, zerolog.New(nil).Level(zerolog.Disabled))
}

func TestService_UpsertNotifiesListeners(t *testing.T) {
	svc := newTestService(t)
	first := &recordingListener{}
	second := &recordingListener{}
	svc.Subscribe(first)
	svc.Subscribe(second)

	card := domain.Card{TokenID: 1, AssetID: "a1", MarketValue: 50}
	require.NoError(t, svc.Upsert(card))

	require.Equal(t, 1, first.eventCount())
	require.Equal(t, 1, second.eventCount())
	assert.Equal(t, []domain.Card{card}, first.events[0])

	stored, err := svc.GetByTokenID(1)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestService_UpsertManyNotifiesOnce(t *testing.T) {
	svc := newTestService(t)
	listener := &recordingListener{}
	svc.Subscribe(listener)

	batch := []domain.Card{
		{TokenID: 1, AssetID: "a1", MarketValue: 10},
		{TokenID: 2, AssetID: "a2", MarketValue: 20},
	}
	require.NoError(t, svc.UpsertMany(batch))

	require.Equal(t, 1, listener.eventCount())
	assert.Len(t, listener.events[0], 2)
}

func TestService_EmptyBatchSkipsNotification(t *testing.T) {
	svc := newTestService(t)
	listener := &recordingListener{}
	svc.Subscribe(listener)

	require.NoError(t, svc.UpsertMany(nil))
	assert.Zero(t, listener.eventCount())
}

func TestService_SubscribeIdempotent(t *testing.T) {
	svc := newTestService(t)
	listener := &recordingListener{}
	svc.Subscribe(listener)
	svc.Subscribe(listener)

	require.NoError(t, svc.Upsert(domain.Card{TokenID: 1, AssetID: "a1", MarketValue: 10}))
	assert.Equal(t, 1, listener.eventCount())
}

func TestService_Unsubscribe(t *testing.T) {
	svc := newTestService(t)
	listener := &recordingListener{}
	svc.Subscribe(listener)
	svc.Unsubscribe(listener)

	require.NoError(t, svc.Upsert(domain.Card{TokenID: 1, AssetID: "a1", MarketValue: 10}))
	assert.Zero(t, listener.eventCount())

	// Unsubscribing a listener that was never subscribed is harmless.
	svc.Unsubscribe(&recordingListener{})
}

func TestService_ListenerErrorPropagates(t *testing.T) {
	svc := newTestService(t)
	failing := &recordingListener{err: fmt.Errorf("listener exploded")}
	healthy := &recordingListener{}
	svc.Subscribe(failing)
	svc.Subscribe(healthy)

	err := svc.Upsert(domain.Card{TokenID: 1, AssetID: "a1", MarketValue: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listener exploded")

	// The write itself committed before notification, and every listener
	// still received the event.
	stored, getErr := svc.GetByTokenID(1)
	require.NoError(t, getErr)
	assert.NotNil(t, stored)
	assert.Equal(t, 1, healthy.eventCount())
}

func TestService_RepositoryErrorSkipsNotification(t *testing.T) {
	svc := newTestService(t)
	listener := &recordingListener{}
	svc.Subscribe(listener)

	// Negative value violates the schema check constraint.
	err := svc.Upsert(domain.Card{TokenID: 1, AssetID: "a1", MarketValue: -1})
	require.Error(t, err)
	assert.Zero(t, listener.eventCount())
}
