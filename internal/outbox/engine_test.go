package outbox_test

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mail-client/internal/connectivity"
	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/outbox"
	"github.com/nhle/mail-client/internal/store"
	"github.com/nhle/mail-client/tests/testutil"
)

func alwaysSelected(id string) outbox.SelectionFunc {
	return func() (string, bool) { return id, true }
}

func noneSelected() (string, bool) { return "", false }

func newEngine(t *testing.T, online bool, selected outbox.SelectionFunc) (*outbox.Engine, *store.SQLiteStore, *testutil.FakeGateway, *connectivity.Monitor) {
	t.Helper()
	s := testutil.NewTestStore(t)
	gw := testutil.NewFakeGateway()
	monitor := connectivity.NewMonitor(online, 0)
	e := outbox.New(s, gw, monitor, zap.NewNop(), selected)
	return e, s, gw, monitor
}

func TestEnqueueOfflineQueuesDurably(t *testing.T) {
	e, s, gw, _ := newEngine(t, false, alwaysSelected("a1"))
	ctx := context.Background()

	item, err := e.Enqueue(ctx, outbox.EnqueueInput{
		AccountID: "a1",
		To:        "rcpt@example.com",
		Subject:   "hello",
		BodyText:  "body",
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	stored, err := s.GetOutboxItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetOutboxItem: %v", err)
	}
	if stored == nil {
		t.Fatal("expected item persisted")
	}
	if stored.Status != model.OutboxQueued {
		t.Errorf("expected queued status, got %q", stored.Status)
	}

	// Give the post-enqueue flush a moment; offline it must not send.
	time.Sleep(50 * time.Millisecond)
	if gw.SentCount() != 0 {
		t.Error("expected no delivery while offline")
	}
}

func TestEnqueueRejectsMissingFields(t *testing.T) {
	e, _, _, _ := newEngine(t, false, alwaysSelected("a1"))
	ctx := context.Background()

	if _, err := e.Enqueue(ctx, outbox.EnqueueInput{To: "rcpt@example.com"}); err == nil {
		t.Error("expected error for missing account id")
	}
	if _, err := e.Enqueue(ctx, outbox.EnqueueInput{AccountID: "a1"}); err == nil {
		t.Error("expected error for missing recipients")
	}
}

func TestEnqueueOnlineDelivers(t *testing.T) {
	e, s, gw, _ := newEngine(t, true, alwaysSelected("a1"))
	ctx := context.Background()

	item, err := e.Enqueue(ctx, outbox.EnqueueInput{
		AccountID: "a1",
		To:        "rcpt@example.com",
		Subject:   "hello",
		BodyText:  "body",
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	testutil.Eventually(t, 2*time.Second, func() bool {
		return gw.SentCount() == 1
	})
	testutil.Eventually(t, 2*time.Second, func() bool {
		got, err := s.GetOutboxItem(ctx, item.ID)
		return err == nil && got == nil
	})
}

func TestFailedSendRecordsErrorAndRetriesOnReconnect(t *testing.T) {
	e, s, gw, monitor := newEngine(t, true, alwaysSelected("a1"))
	ctx := context.Background()

	gw.SetSendErr(errors.New("550 mailbox unavailable"))

	item, err := e.Enqueue(ctx, outbox.EnqueueInput{
		AccountID: "a1",
		To:        "rcpt@example.com",
		Subject:   "hello",
		BodyText:  "body",
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	testutil.Eventually(t, 2*time.Second, func() bool {
		got, err := s.GetOutboxItem(ctx, item.ID)
		return err == nil && got != nil && got.Status == model.OutboxFailed
	})
	got, err := s.GetOutboxItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetOutboxItem: %v", err)
	}
	if got.LastError != "550 mailbox unavailable" {
		t.Errorf("expected failure detail recorded, got %q", got.LastError)
	}

	// The server recovers; a reconnect transition retries the failed item.
	gw.SetSendErr(nil)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go e.Run(runCtx)
	time.Sleep(20 * time.Millisecond)

	monitor.Set(false)
	monitor.Set(true)

	testutil.Eventually(t, 2*time.Second, func() bool {
		got, err := s.GetOutboxItem(ctx, item.ID)
		return err == nil && got == nil
	})
	if gw.SentCount() != 1 {
		t.Errorf("expected exactly one delivery, got %d", gw.SentCount())
	}
}

func TestWakeTriggersFlush(t *testing.T) {
	e, s, gw, _ := newEngine(t, true, alwaysSelected("a1"))
	ctx := context.Background()

	// Seed directly so no post-enqueue flush races the wake.
	if err := s.PutOutboxItem(ctx, model.OutboxItem{
		ID: "o1", AccountID: "a1", To: "rcpt@example.com", Subject: "hi",
		Status: model.OutboxQueued, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("PutOutboxItem: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go e.Run(runCtx)

	e.Wake()

	testutil.Eventually(t, 2*time.Second, func() bool {
		return gw.SentCount() == 1
	})
}

func TestConcurrentFlushSendsEachItemOnce(t *testing.T) {
	e, s, gw, _ := newEngine(t, true, alwaysSelected("a1"))
	ctx := context.Background()

	base := time.Now()
	for _, id := range []string{"o1", "o2", "o3"} {
		if err := s.PutOutboxItem(ctx, model.OutboxItem{
			ID: id, AccountID: "a1", To: "rcpt@example.com", Subject: id,
			Status: model.OutboxQueued, CreatedAt: base,
		}); err != nil {
			t.Fatalf("PutOutboxItem: %v", err)
		}
	}

	var wg gosync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.Flush(ctx); err != nil {
				t.Errorf("Flush: %v", err)
			}
		}()
	}
	wg.Wait()

	if gw.SentCount() != 3 {
		t.Errorf("expected each item delivered exactly once, got %d sends", gw.SentCount())
	}
	items, err := s.GetOutboxItems(ctx)
	if err != nil {
		t.Fatalf("GetOutboxItems: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty outbox after delivery, got %d items", len(items))
	}
}

func TestFlushNoopWithoutSelection(t *testing.T) {
	e, s, gw, _ := newEngine(t, true, noneSelected)
	ctx := context.Background()

	if err := s.PutOutboxItem(ctx, model.OutboxItem{
		ID: "o1", AccountID: "a1", To: "rcpt@example.com",
		Status: model.OutboxQueued, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("PutOutboxItem: %v", err)
	}

	if err := e.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if gw.SentCount() != 0 {
		t.Error("expected no delivery without a selected account")
	}
}
