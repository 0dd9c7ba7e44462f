package bot

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/ariefcatur/go-chat-orders/internal/gateway"
	"github.com/ariefcatur/go-chat-orders/internal/orders"
)

const (
	maxNameLen = 256
	maxDescLen = 4096
)

func (c *Controller) onAdminMenu(ctx context.Context, s *Session, ev gateway.Event, label string) error {
	switch label {
	case btnAdminPanel:
		c.reply(ctx, ev.ChatID, msgAdminPanel, adminMenu())
	case btnAddProduct:
		s.Reset()
		s.State = StateAwaitingAdminPhoto
		c.reply(ctx, ev.ChatID, msgAskPhoto, nil)
	case btnStats:
		rep, err := c.stats.Report(ctx, statsTopN)
		if err != nil {
			return err
		}
		c.reply(ctx, ev.ChatID, statsText(rep), nil)
	case btnSummary:
		sum, err := c.stats.Summary(ctx)
		if err != nil {
			return err
		}
		c.reply(ctx, ev.ChatID, summaryText(sum), nil)
	}
	return nil
}

func (c *Controller) onPhoto(ctx context.Context, s *Session, ev gateway.Event) error {
	switch {
	case s.State == StateAwaitingAdminPhoto:
		s.Draft.PhotoRef = ev.PhotoRef
		s.State = StateAwaitingAdminName
		c.reply(ctx, ev.ChatID, msgPhotoReceived, nil)
	case s.Staged():
		c.reprompt(ctx, s, ev)
	}
	return nil
}

// reprompt repeats the current step's request; staged input is kept.
func (c *Controller) reprompt(ctx context.Context, s *Session, ev gateway.Event) {
	var msg string
	switch s.State {
	case StateAwaitingAdminPhoto:
		msg = msgNeedPhoto
	case StateAwaitingAdminName:
		msg = msgNeedName
	case StateAwaitingAdminPrice:
		msg = msgNeedPrice
	case StateAwaitingAdminDesc:
		msg = msgNeedDesc
	case StateAwaitingRejectReason:
		msg = msgNeedReason
	default:
		return
	}
	c.reply(ctx, ev.ChatID, msg, nil)
}

func (c *Controller) onStagedText(ctx context.Context, s *Session, ev gateway.Event) error {
	text := strings.TrimSpace(ev.Text)
	switch s.State {
	case StateAwaitingAdminName:
		if text == "" || utf8.RuneCountInString(text) > maxNameLen {
			break
		}
		s.Draft.Name = text
		s.State = StateAwaitingAdminPrice
		c.reply(ctx, ev.ChatID, nameSavedText(text), nil)
		return nil
	case StateAwaitingAdminPrice:
		price, ok := parsePrice(text)
		if !ok {
			break
		}
		s.Draft.Price = price
		s.State = StateAwaitingAdminDesc
		c.reply(ctx, ev.ChatID, priceSavedText(price), nil)
		return nil
	case StateAwaitingAdminDesc:
		if text == "" || utf8.RuneCountInString(ev.Text) > maxDescLen {
			break
		}
		s.Draft.Description = ev.Text
		return c.finishProduct(ctx, s, ev)
	case StateAwaitingRejectReason:
		if text == "" {
			break
		}
		return c.finishReject(ctx, s, ev, ev.Text)
	}
	c.reprompt(ctx, s, ev)
	return nil
}

func (c *Controller) finishProduct(ctx context.Context, s *Session, ev gateway.Event) error {
	p, err := c.svc.AddProduct(ctx, ev.From.ID, s.Draft)
	switch {
	case errors.Is(err, orders.ErrUnauthorized):
		s.Reset()
		return nil
	case errors.Is(err, orders.ErrInvalidInput):
		c.reprompt(ctx, s, ev)
		return nil
	case err != nil:
		return err
	}
	s.Reset()
	c.reply(ctx, ev.ChatID, productAddedText(p), adminMenu())
	return nil
}

func (c *Controller) onAccept(ctx context.Context, s *Session, ev gateway.Event) error {
	if !c.svc.IsAdmin(ev.From.ID) {
		c.ack(ctx, ev, "")
		return nil
	}
	if _, ok := orders.ParseOrderID(ev.Control.ID); !ok {
		c.ack(ctx, ev, "")
		c.reply(ctx, ev.ChatID, msgNotFound, nil)
		return nil
	}
	o, err := c.svc.Accept(ctx, ev.From.ID, ev.Control.ID)
	switch {
	case errors.Is(err, orders.ErrAlreadyAdjudicated):
		c.ack(ctx, ev, alreadyHandledText(o))
		c.edit(ctx, ev.ChatID, ev.MessageID, "", nil)
		return nil
	case errors.Is(err, orders.ErrNotFound):
		c.ack(ctx, ev, "")
		c.reply(ctx, ev.ChatID, msgNotFound, nil)
		return nil
	case err != nil:
		return err
	}
	c.ack(ctx, ev, "")
	c.edit(ctx, ev.ChatID, ev.MessageID, "", nil)
	c.reply(ctx, ev.ChatID, adjudicatedText(o), nil)
	return nil
}

// onReject stages the order and asks for the reason; the transition
// happens in finishReject.
func (c *Controller) onReject(ctx context.Context, s *Session, ev gateway.Event) error {
	if !c.svc.IsAdmin(ev.From.ID) {
		c.ack(ctx, ev, "")
		return nil
	}
	id := ev.Control.ID
	if _, ok := orders.ParseOrderID(id); !ok {
		c.ack(ctx, ev, "")
		c.reply(ctx, ev.ChatID, msgNotFound, nil)
		return nil
	}
	o, err := c.svc.Order(ctx, id)
	if errors.Is(err, orders.ErrNotFound) {
		c.ack(ctx, ev, "")
		c.reply(ctx, ev.ChatID, msgNotFound, nil)
		return nil
	}
	if err != nil {
		return err
	}
	if o.Status.Terminal() {
		c.ack(ctx, ev, alreadyHandledText(o))
		c.edit(ctx, ev.ChatID, ev.MessageID, "", nil)
		return nil
	}
	c.ack(ctx, ev, "")
	s.Reset()
	s.State = StateAwaitingRejectReason
	s.RejectOrderID = id
	s.RejectMessageID = ev.MessageID
	c.reply(ctx, ev.ChatID, askReasonText(id), nil)
	return nil
}

func (c *Controller) finishReject(ctx context.Context, s *Session, ev gateway.Event, reason string) error {
	o, err := c.svc.Reject(ctx, ev.From.ID, s.RejectOrderID, reason)
	switch {
	case errors.Is(err, orders.ErrInvalidInput):
		c.reprompt(ctx, s, ev)
		return nil
	case errors.Is(err, orders.ErrAlreadyAdjudicated):
		c.edit(ctx, ev.ChatID, s.RejectMessageID, "", nil)
		s.Reset()
		c.reply(ctx, ev.ChatID, alreadyHandledText(o), adminMenu())
		return nil
	case errors.Is(err, orders.ErrNotFound):
		s.Reset()
		c.reply(ctx, ev.ChatID, msgNotFound, adminMenu())
		return nil
	case errors.Is(err, orders.ErrUnauthorized):
		s.Reset()
		return nil
	case err != nil:
		return err
	}
	c.edit(ctx, ev.ChatID, s.RejectMessageID, "", nil)
	s.Reset()
	c.reply(ctx, ev.ChatID, adjudicatedText(o), adminMenu())
	return nil
}
