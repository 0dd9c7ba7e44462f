// Package bot is the conversation controller: it keeps per-user dialog
// state and routes inbound gateway events to the order service.
package bot

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-chat-orders/internal/gateway"
	"github.com/ariefcatur/go-chat-orders/internal/orders"
	"github.com/ariefcatur/go-chat-orders/internal/stats"
	"github.com/ariefcatur/go-chat-orders/internal/subscription"
	"go.uber.org/zap"
)

type Config struct {
	Service     *orders.Service
	Gateway     gateway.Gateway
	Gate        *subscription.Gate
	Stats       stats.Aggregator
	Dedup       Deduper // nil = in-memory
	Log         *zap.SugaredLogger
	BotUsername string
	SendTimeout time.Duration
}

type Controller struct {
	svc         *orders.Service
	gw          gateway.Gateway
	gate        *subscription.Gate
	stats       stats.Aggregator
	dedup       Deduper
	sessions    *Sessions
	log         *zap.SugaredLogger
	botUsername string
	sendTimeout time.Duration
}

func New(cfg Config) *Controller {
	c := &Controller{
		svc:         cfg.Service,
		gw:          cfg.Gateway,
		gate:        cfg.Gate,
		stats:       cfg.Stats,
		dedup:       cfg.Dedup,
		sessions:    NewSessions(),
		log:         cfg.Log,
		botUsername: cfg.BotUsername,
		sendTimeout: cfg.SendTimeout,
	}
	if c.dedup == nil {
		c.dedup = NewMemoryDeduper(48 * time.Hour)
	}
	if c.sendTimeout <= 0 {
		c.sendTimeout = 3 * time.Second
	}
	return c
}

func (c *Controller) Sessions() *Sessions { return c.sessions }

// Handle processes one inbound event. A redelivered update id is dropped.
// A returned error means the event had no lasting effect and may be
// redelivered; its dedup claim is released.
func (c *Controller) Handle(ctx context.Context, ev gateway.Event) error {
	if ev.From.ID == 0 {
		return nil
	}
	claimed := false
	if ev.UpdateID != "" {
		ok, err := c.dedup.Claim(ctx, ev.UpdateID)
		switch {
		case err != nil:
			c.log.Warnw("dedup claim failed", "update_id", ev.UpdateID, "error", err)
		case !ok:
			c.log.Debugw("duplicate update dropped", "update_id", ev.UpdateID)
			return nil
		default:
			claimed = true
		}
	}

	s, release := c.sessions.Lock(ev.From.ID)
	err := c.dispatch(ctx, s, ev)
	release()

	if err != nil {
		c.log.Errorw("handle update", "update_id", ev.UpdateID, "user_id", ev.From.ID, "kind", ev.Kind, "error", err)
		if claimed {
			if rerr := c.dedup.Release(context.WithoutCancel(ctx), ev.UpdateID); rerr != nil {
				c.log.Warnw("dedup release failed", "update_id", ev.UpdateID, "error", rerr)
			}
		}
	}
	return err
}

func (c *Controller) dispatch(ctx context.Context, s *Session, ev gateway.Event) error {
	switch ev.Kind {
	case gateway.KindCallback:
		return c.onCallback(ctx, s, ev)
	case gateway.KindCommand:
		switch ev.Command {
		case "start":
			return c.onStart(ctx, s, ev)
		case "cancel":
			return c.onCancel(ctx, s, ev)
		}
		return nil
	case gateway.KindContact:
		return c.onContact(ctx, s, ev)
	case gateway.KindPhoto:
		return c.onPhoto(ctx, s, ev)
	default:
		return c.onText(ctx, s, ev)
	}
}

func (c *Controller) onCallback(ctx context.Context, s *Session, ev gateway.Event) error {
	ctl := ev.Control
	if !ctl.Valid() {
		c.ack(ctx, ev, "")
		c.reply(ctx, ev.ChatID, msgNotFound, nil)
		return nil
	}
	switch ctl.Action {
	case gateway.ActionCheckSub:
		return c.onCheckSub(ctx, s, ev)
	case gateway.ActionOrder:
		return c.onOrder(ctx, s, ev)
	case gateway.ActionConfirm:
		return c.onConfirm(ctx, s, ev)
	case gateway.ActionCancel:
		s.Reset()
		c.ack(ctx, ev, "")
		c.edit(ctx, ev.ChatID, ev.MessageID, msgCancelled, nil)
		return nil
	case gateway.ActionAccept:
		return c.onAccept(ctx, s, ev)
	case gateway.ActionReject:
		return c.onReject(ctx, s, ev)
	}
	c.ack(ctx, ev, "")
	return nil
}

// onCancel discards staged input. Shared state is never touched.
func (c *Controller) onCancel(ctx context.Context, s *Session, ev gateway.Event) error {
	s.Reset()
	c.reply(ctx, ev.ChatID, msgCancelled, c.mainMenu(ev.From.ID))
	return nil
}

// registered reports whether the user has completed phone registration.
func (c *Controller) registered(ctx context.Context, userID int64) (orders.User, bool, error) {
	u, err := c.svc.User(ctx, userID)
	if errors.Is(err, orders.ErrNotFound) {
		return orders.User{}, false, nil
	}
	if err != nil {
		return orders.User{}, false, err
	}
	return u, true, nil
}

// gated runs the subscription check and shows the join prompt on failure.
func (c *Controller) gated(ctx context.Context, ev gateway.Event) bool {
	if err := c.gate.Check(ctx, ev.From.ID); err != nil {
		text, kb := c.subscribePrompt()
		c.reply(ctx, ev.ChatID, text, kb)
		return false
	}
	return true
}

// Outbound helpers. Delivery failures are logged and swallowed.

func (c *Controller) reply(ctx context.Context, chatID int64, text string, kb *gateway.Keyboard) {
	sctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()
	if err := c.gw.SendText(sctx, chatID, text, kb); err != nil {
		c.log.Warnw("send text failed", "chat_id", chatID, "error", err)
	}
}

func (c *Controller) photo(ctx context.Context, chatID int64, photoRef, caption string, kb *gateway.Keyboard) {
	sctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()
	if err := c.gw.SendPhoto(sctx, chatID, photoRef, caption, kb); err != nil {
		c.log.Warnw("send photo failed", "chat_id", chatID, "error", err)
	}
}

func (c *Controller) edit(ctx context.Context, chatID, messageID int64, text string, kb *gateway.Keyboard) {
	if messageID == 0 {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()
	if err := c.gw.EditMessage(sctx, chatID, messageID, text, kb); err != nil {
		c.log.Warnw("edit message failed", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}

func (c *Controller) ack(ctx context.Context, ev gateway.Event, alert string) {
	if ev.CallbackID == "" {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()
	if err := c.gw.AcknowledgeCallback(sctx, ev.CallbackID, alert); err != nil {
		c.log.Warnw("answer callback failed", "callback_id", ev.CallbackID, "error", err)
	}
}
