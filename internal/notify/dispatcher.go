package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Dispatcher is a Notifier that queues notifications and delivers them from a
// fixed set of workers, so registry mutations never wait on the transport.
type Dispatcher struct {
	logger  *zap.Logger
	sender  Sender
	queue   chan Notification
	workers int
	timeout time.Duration
	now     func() time.Time
}

func NewDispatcher(logger *zap.Logger, sender Sender, queueSize, workers int, timeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		logger:  logger,
		sender:  sender,
		queue:   make(chan Notification, queueSize),
		workers: workers,
		timeout: timeout,
		now:     time.Now,
	}
}

// Notify enqueues the notification. When the queue is full the notification is
// dropped and logged.
func (d *Dispatcher) Notify(playerID uuid.UUID, kind EventKind, message string) {
	n := Notification{PlayerID: playerID, Event: kind, Message: message, SentAt: d.now()}
	select {
	case d.queue <- n:
	default:
		d.logger.Warn("notification queue full, dropping",
			zap.Stringer("player_id", playerID),
			zap.String("event", string(kind)))
	}
}

// Run delivers queued notifications until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		eg.Go(func() error {
			d.work(ctx)
			return nil
		})
	}
	return eg.Wait()
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := d.sender.Send(sendCtx, n); err != nil {
		d.logger.Warn("deliver notification",
			zap.Stringer("player_id", n.PlayerID),
			zap.String("event", string(n.Event)),
			zap.Error(err))
	}
}
