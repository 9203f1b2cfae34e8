// Package outbox persists queued outgoing messages and drives their
// delivery. Three triggers converge on one flush path: a fresh enqueue, a
// reconnect, and an external wake signal.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/mail-client/internal/connectivity"
	"github.com/nhle/mail-client/internal/gateway"
	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/store"
)

// SelectionFunc reports the currently selected account. Flush is gated on
// an account being selected; delivery itself always uses the account the
// item was queued under.
type SelectionFunc func() (accountID string, ok bool)

// EnqueueInput carries a composed message to be queued for delivery.
type EnqueueInput struct {
	AccountID    string
	To           string
	Cc           string
	Bcc          string
	Subject      string
	BodyText     string
	BodyHTML     string
	SentFolderID string
}

// Engine owns the outbox record kind: it queues items, attempts delivery,
// tracks per-item status and last error, and retries on later triggers.
type Engine struct {
	store    store.Store
	gw       gateway.Gateway
	monitor  *connectivity.Monitor
	logger   *zap.Logger
	selected SelectionFunc

	wakeCh chan struct{}
}

// New creates an outbox engine.
func New(s store.Store, gw gateway.Gateway, monitor *connectivity.Monitor, logger *zap.Logger, selected SelectionFunc) *Engine {
	return &Engine{
		store:    s,
		gw:       gw,
		monitor:  monitor,
		logger:   logger,
		selected: selected,
		wakeCh:   make(chan struct{}, 1),
	}
}

// Enqueue mints an id, persists the item as queued, notifies the user, and
// immediately attempts a flush in the background.
func (e *Engine) Enqueue(ctx context.Context, in EnqueueInput) (*model.OutboxItem, error) {
	if in.AccountID == "" {
		return nil, fmt.Errorf("missing account id")
	}
	if in.To == "" {
		return nil, fmt.Errorf("missing recipients")
	}

	item := model.OutboxItem{
		ID:           uuid.New().String(),
		AccountID:    in.AccountID,
		CreatedAt:    time.Now(),
		To:           in.To,
		Cc:           in.Cc,
		Bcc:          in.Bcc,
		Subject:      in.Subject,
		BodyText:     in.BodyText,
		BodyHTML:     in.BodyHTML,
		SentFolderID: in.SentFolderID,
		Status:       model.OutboxQueued,
	}

	if err := e.store.PutOutboxItem(ctx, item); err != nil {
		return nil, fmt.Errorf("queueing message: %w", err)
	}

	if e.monitor.Online() {
		e.notify(ctx, item.AccountID, "sending…")
	} else {
		e.notify(ctx, item.AccountID, "queued (offline)")
	}

	// Try immediately, and leave a wake registered so a later trigger
	// picks the item up if this attempt loses connectivity mid-way.
	go func() {
		if err := e.Flush(context.Background()); err != nil {
			e.logger.Warn("post-enqueue flush failed", zap.Error(err))
		}
	}()
	e.Wake()

	return &item, nil
}

// Wake requests a flush from the run loop without blocking. Any source may
// call it: a background scheduler, a cooperating process, a signal handler.
func (e *Engine) Wake() {
	select {
	case e.wakeCh <- struct{}{}:
	default:
		// A wake is already pending; one flush serves both.
	}
}

// Run processes flush triggers until the context is cancelled: external
// wake signals and offline-to-online transitions. Each online transition
// triggers exactly one flush.
func (e *Engine) Run(ctx context.Context) {
	transitions := e.monitor.Subscribe()

	for {
		select {
		case <-ctx.Done():
			return

		case <-e.wakeCh:
			if err := e.Flush(ctx); err != nil {
				e.logger.Warn("wake flush failed", zap.Error(err))
			}

		case online := <-transitions:
			if !online {
				continue
			}
			if err := e.Flush(ctx); err != nil {
				e.logger.Warn("reconnect flush failed", zap.Error(err))
			}
		}
	}
}

// Flush attempts delivery of every queued or failed item. It is safe to
// invoke concurrently: the store's claim transition is the sole admission
// gate, so no item is ever picked up twice. A no-op when offline or when
// no account is selected.
func (e *Engine) Flush(ctx context.Context) error {
	if !e.monitor.Online() {
		return nil
	}
	if _, ok := e.selected(); !ok {
		return nil
	}

	items, err := e.store.GetOutboxItems(ctx, model.OutboxQueued, model.OutboxFailed)
	if err != nil {
		return fmt.Errorf("listing outbox: %w", err)
	}

	for _, item := range items {
		claimed, err := e.store.ClaimOutboxItem(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("claiming outbox item: %w", err)
		}
		if !claimed {
			continue
		}

		e.deliver(ctx, item)
	}

	return nil
}

// deliver sends one claimed item, deleting it on success and reverting it
// to failed with the error detail otherwise.
func (e *Engine) deliver(ctx context.Context, item model.OutboxItem) {
	err := e.gw.Send(ctx, item.AccountID, gateway.Outgoing{
		To:           item.To,
		Cc:           item.Cc,
		Bcc:          item.Bcc,
		Subject:      item.Subject,
		BodyText:     item.BodyText,
		BodyHTML:     item.BodyHTML,
		SentFolderID: item.SentFolderID,
	})

	if err != nil {
		if markErr := e.store.MarkOutboxFailed(ctx, item.ID, err.Error()); markErr != nil {
			e.logger.Error("recording send failure failed",
				zap.String("outbox_id", item.ID), zap.Error(markErr))
		}
		e.notify(ctx, item.AccountID, "send failed (will retry)")
		e.logger.Warn("send failed",
			zap.String("outbox_id", item.ID),
			zap.String("account_id", item.AccountID),
			zap.Error(err),
		)
		return
	}

	if err := e.store.DeleteOutboxItem(ctx, item.ID); err != nil {
		e.logger.Error("removing sent item failed",
			zap.String("outbox_id", item.ID), zap.Error(err))
		return
	}

	e.notify(ctx, item.AccountID, "sent")
	e.logger.Info("message sent",
		zap.String("outbox_id", item.ID),
		zap.String("account_id", item.AccountID),
	)
}

// notify records a user-visible notification, best-effort.
func (e *Engine) notify(ctx context.Context, accountID, message string) {
	n := model.Notification{
		AccountID: accountID,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if err := e.store.CreateNotification(ctx, n); err != nil {
		e.logger.Warn("recording notification failed", zap.Error(err))
	}
}
