package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/memstore"
	"github.com/example/storefront/pkg/models"
)

type brokenStore struct {
	*memstore.Notifications
}

func (brokenStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	return errors.New("connection refused")
}

func newHub(t *testing.T, store Store) *Hub {
	t.Helper()
	hub, err := NewHub(actor.NewActorSystem(), store, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = hub.Stop() })
	return hub
}

func TestHub_NotifyAndList(t *testing.T) {
	store := memstore.NewNotifications()
	hub := newHub(t, store)

	require.NoError(t, hub.Notify(context.Background(), &models.Notification{ID: "n1", Kind: models.NotificationOrderPlaced, RefID: "ORD-1"}))
	require.NoError(t, hub.Notify(context.Background(), &models.Notification{ID: "n2", Kind: models.NotificationPromoUsageUnrecorded, RefID: "ORD-2"}))

	list, err := hub.List(context.Background(), false, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n2", list[0].ID)
	assert.False(t, list[0].CreatedAt.IsZero())
}

func TestHub_MarkRead(t *testing.T) {
	store := memstore.NewNotifications()
	hub := newHub(t, store)
	require.NoError(t, hub.Notify(context.Background(), &models.Notification{ID: "n1", Kind: models.NotificationOrderPlaced}))
	require.NoError(t, hub.Notify(context.Background(), &models.Notification{ID: "n2", Kind: models.NotificationOrderPlaced}))

	require.NoError(t, hub.MarkRead(context.Background(), "n1"))

	unread, err := hub.List(context.Background(), true, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "n2", unread[0].ID)

	err = hub.MarkRead(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestHub_NotifyStoreFailure(t *testing.T) {
	hub := newHub(t, brokenStore{memstore.NewNotifications()})

	err := hub.Notify(context.Background(), &models.Notification{ID: "n1"})

	assert.True(t, apperr.Is(err, apperr.KindPersistenceFailure))
}

func TestHub_NotifyCancelledContext(t *testing.T) {
	hub := newHub(t, memstore.NewNotifications())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	cancel()

	err := hub.Notify(ctx, &models.Notification{ID: "n1"})

	assert.ErrorIs(t, err, context.Canceled)
}
