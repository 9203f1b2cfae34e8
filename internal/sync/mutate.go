package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nhle/mail-client/internal/gateway"
)

// The three message mutations share one pattern: apply to the local store
// and the in-memory view first, unconditionally, then forward to the
// gateway only when online. A failed forward is logged and dropped — the
// local state stays changed and no retry is recorded. This is the accepted
// optimistic contract; see DESIGN.md.

// MarkRead sets or clears the read state of a message.
func (c *Coordinator) MarkRead(ctx context.Context, id string, read bool) error {
	c.mu.Lock()
	accountID := c.selectedAccountID
	if accountID == "" {
		c.mu.Unlock()
		return nil
	}
	for i := range c.headers {
		if c.headers[i].ID == id {
			c.headers[i].IsUnread = !read
		}
	}
	c.mu.Unlock()

	if err := c.store.SetHeaderUnread(ctx, accountID, id, !read); err != nil {
		return fmt.Errorf("updating cached read state: %w", err)
	}

	if !c.monitor.Online() {
		return nil
	}

	patch := gateway.UpdatePatch{MarkRead: read, MarkUnread: !read}
	if err := c.gw.UpdateMessage(ctx, accountID, id, patch); err != nil {
		c.logger.Warn("remote mark-read failed, local state kept",
			zap.String("message_id", id), zap.Error(err))
	}

	return nil
}

// MoveTo moves a message to another folder. The header leaves the active
// view immediately; the active folder no longer contains it.
func (c *Coordinator) MoveTo(ctx context.Context, id, folderID string) error {
	return c.removeAndForward(ctx, id, gateway.UpdatePatch{MoveToFolderID: folderID}, "move")
}

// Delete deletes a message.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	return c.removeAndForward(ctx, id, gateway.UpdatePatch{Delete: true}, "delete")
}

// removeAndForward drops the header locally and forwards the mutation.
func (c *Coordinator) removeAndForward(ctx context.Context, id string, patch gateway.UpdatePatch, op string) error {
	c.mu.Lock()
	accountID := c.selectedAccountID
	if accountID == "" {
		c.mu.Unlock()
		return nil
	}
	kept := c.headers[:0]
	for _, h := range c.headers {
		if h.ID != id {
			kept = append(kept, h)
		}
	}
	c.headers = kept
	if c.selectedMessageID == id {
		c.selectedMessageID = ""
		c.message = nil
		c.messageEpoch++
	}
	c.mu.Unlock()

	if err := c.store.DeleteHeader(ctx, accountID, id); err != nil {
		return fmt.Errorf("removing cached header: %w", err)
	}

	if !c.monitor.Online() {
		return nil
	}

	if err := c.gw.UpdateMessage(ctx, accountID, id, patch); err != nil {
		c.logger.Warn("remote "+op+" failed, local state kept",
			zap.String("message_id", id), zap.Error(err))
	}

	return nil
}
