// Package notify delivers admin back-office notifications through a
// ProtoActor actor so that writers never block on each other.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/pkg/models"
)

const defaultTimeout = 5 * time.Second

type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, unreadOnly bool, limit int64) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// Messages
type deliver struct {
	Notification *models.Notification
}

type markRead struct {
	ID string
}

type ack struct {
	Err error
}

// NotificationActor persists notifications one at a time.
type NotificationActor struct {
	store  Store
	logger *zap.Logger
}

func (a *NotificationActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *deliver:
		n := msg.Notification
		err := a.store.CreateNotification(context.Background(), n)
		if err != nil {
			a.logger.Error("Failed to store notification", zap.String("kind", string(n.Kind)), zap.Error(err))
		} else {
			a.logger.Info("Notification stored",
				zap.String("id", n.ID),
				zap.String("kind", string(n.Kind)),
				zap.String("ref_id", n.RefID))
		}
		ctx.Respond(&ack{Err: err})

	case *markRead:
		ctx.Respond(&ack{Err: a.store.MarkNotificationRead(context.Background(), msg.ID)})

	case *actor.Started:
		a.logger.Info("Notification actor started")

	case *actor.Stopped:
		a.logger.Info("Notification actor stopped")
	}
}

// Hub is the entry point used by the checkout service and the admin API.
type Hub struct {
	root    *actor.RootContext
	pid     *actor.PID
	store   Store
	timeout time.Duration
}

// NewHub spawns the notification actor on system.
func NewHub(system *actor.ActorSystem, store Store, logger *zap.Logger) (*Hub, error) {
	props := actor.PropsFromProducer(func() actor.Actor {
		return &NotificationActor{store: store, logger: logger.Named("notification-actor")}
	})
	pid, err := system.Root.SpawnNamed(props, "notification-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn notification actor: %w", err)
	}
	return &Hub{root: system.Root, pid: pid, store: store, timeout: defaultTimeout}, nil
}

// Notify stores n and waits for the actor to acknowledge it.
func (h *Hub) Notify(ctx context.Context, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	return h.request(ctx, &deliver{Notification: n})
}

func (h *Hub) List(ctx context.Context, unreadOnly bool, limit int64) ([]*models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	list, err := h.store.ListNotifications(ctx, unreadOnly, limit)
	if err != nil {
		return nil, apperr.Persistence("failed to list notifications", err)
	}
	return list, nil
}

func (h *Hub) MarkRead(ctx context.Context, id string) error {
	return h.request(ctx, &markRead{ID: id})
}

// Stop terminates the actor and waits for it to exit.
func (h *Hub) Stop() error {
	return h.root.PoisonFuture(h.pid).Wait()
}

func (h *Hub) request(ctx context.Context, msg interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := h.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	result, err := h.root.RequestFuture(h.pid, msg, timeout).Result()
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "notification actor did not respond", err)
	}
	reply, ok := result.(*ack)
	if !ok {
		return apperr.Newf(apperr.KindInternal, "unexpected reply %T", result)
	}
	if reply.Err != nil && apperr.KindOf(reply.Err) == apperr.KindInternal {
		return apperr.Persistence("failed to store notification", reply.Err)
	}
	return reply.Err
}
