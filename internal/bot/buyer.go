package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-chat-orders/internal/gateway"
	"github.com/ariefcatur/go-chat-orders/internal/orders"
)

func (c *Controller) onStart(ctx context.Context, s *Session, ev gateway.Event) error {
	s.Reset()
	if !c.gated(ctx, ev) {
		return nil
	}
	u, ok, err := c.registered(ctx, ev.From.ID)
	if err != nil {
		return err
	}
	if !ok {
		s.State = StateAwaitingPhone
		c.reply(ctx, ev.ChatID, greetText(ev.From.FirstName), phoneKeyboard())
		return nil
	}
	c.reply(ctx, ev.ChatID, welcomeText(u.DisplayName), c.mainMenu(ev.From.ID))
	return nil
}

func (c *Controller) onContact(ctx context.Context, s *Session, ev gateway.Event) error {
	if s.Staged() {
		c.reprompt(ctx, s, ev)
		return nil
	}
	u, ok, err := c.registered(ctx, ev.From.ID)
	if err != nil {
		return err
	}
	if ok {
		s.Reset()
		c.reply(ctx, ev.ChatID, welcomeText(u.DisplayName), c.mainMenu(ev.From.ID))
		return nil
	}
	if !c.gated(ctx, ev) {
		return nil
	}
	_, _, err = c.svc.Register(ctx, orders.User{
		ID:          ev.From.ID,
		DisplayName: ev.From.FirstName,
		Handle:      ev.From.Username,
		Phone:       ev.Phone,
	})
	if errors.Is(err, orders.ErrInvalidInput) {
		s.State = StateAwaitingPhone
		c.reply(ctx, ev.ChatID, msgAskPhone, phoneKeyboard())
		return nil
	}
	if err != nil {
		return err
	}
	s.Reset()
	c.reply(ctx, ev.ChatID, registeredText, c.mainMenu(ev.From.ID))
	return nil
}

func (c *Controller) onText(ctx context.Context, s *Session, ev gateway.Event) error {
	if s.Staged() {
		return c.onStagedText(ctx, s, ev)
	}
	text := strings.TrimSpace(ev.Text)
	switch text {
	case btnAdminPanel, btnAddProduct, btnStats, btnSummary:
		if !c.svc.IsAdmin(ev.From.ID) {
			return nil
		}
		return c.onAdminMenu(ctx, s, ev, text)
	case btnBack:
		c.reply(ctx, ev.ChatID, msgMainMenu, c.mainMenu(ev.From.ID))
		return nil
	}

	_, ok, err := c.registered(ctx, ev.From.ID)
	if err != nil {
		return err
	}
	if !ok {
		return c.onStart(ctx, s, ev)
	}
	if !c.gated(ctx, ev) {
		return nil
	}

	switch {
	case text == btnOrder:
		c.reply(ctx, ev.ChatID, msgAskProductID, nil)
	case text == btnMyOrders:
		return c.showHistory(ctx, ev)
	case text == btnInfo:
		c.reply(ctx, ev.ChatID, c.infoText(), nil)
	case orders.IsProductToken(text):
		return c.showProduct(ctx, ev, text)
	}
	return nil
}

func (c *Controller) showProduct(ctx context.Context, ev gateway.Event, id string) error {
	p, err := c.svc.Product(ctx, id)
	if errors.Is(err, orders.ErrNotFound) {
		c.reply(ctx, ev.ChatID, msgProductNotFound, nil)
		return nil
	}
	if err != nil {
		return err
	}
	caption, kb := c.productCard(p)
	c.photo(ctx, ev.ChatID, p.PhotoRef, caption, kb)
	return nil
}

func (c *Controller) showHistory(ctx context.Context, ev gateway.Event) error {
	views, err := c.svc.History(ctx, ev.From.ID, historyLimit)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		c.reply(ctx, ev.ChatID, msgNoOrders, nil)
		return nil
	}
	c.reply(ctx, ev.ChatID, historyText(views), nil)
	return nil
}

func (c *Controller) onCheckSub(ctx context.Context, s *Session, ev gateway.Event) error {
	if err := c.gate.Check(ctx, ev.From.ID); err != nil {
		c.ack(ctx, ev, msgNotSubscribed)
		return nil
	}
	c.ack(ctx, ev, "")
	u, ok, err := c.registered(ctx, ev.From.ID)
	if err != nil {
		return err
	}
	c.edit(ctx, ev.ChatID, ev.MessageID, msgSubConfirmed, nil)
	s.Reset()
	if !ok {
		s.State = StateAwaitingPhone
		c.reply(ctx, ev.ChatID, msgAskPhone, phoneKeyboard())
		return nil
	}
	c.reply(ctx, ev.ChatID, welcomeText(u.DisplayName), c.mainMenu(ev.From.ID))
	return nil
}

// buyerReady acknowledges the callback and reports whether the sender may
// continue a buyer flow. Unregistered users are sent back to start.
func (c *Controller) buyerReady(ctx context.Context, s *Session, ev gateway.Event) (bool, error) {
	c.ack(ctx, ev, "")
	if _, ok := orders.ParseProductID(ev.Control.ID); !ok {
		c.reply(ctx, ev.ChatID, msgNotFound, nil)
		return false, nil
	}
	_, ok, err := c.registered(ctx, ev.From.ID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, c.onStart(ctx, s, ev)
	}
	return c.gated(ctx, ev), nil
}

func (c *Controller) onOrder(ctx context.Context, s *Session, ev gateway.Event) error {
	ok, err := c.buyerReady(ctx, s, ev)
	if !ok || err != nil {
		return err
	}
	p, err := c.svc.Product(ctx, ev.Control.ID)
	if errors.Is(err, orders.ErrNotFound) {
		c.reply(ctx, ev.ChatID, msgProductNotFound, nil)
		return nil
	}
	if err != nil {
		return err
	}
	text, kb := confirmPrompt(p)
	c.reply(ctx, ev.ChatID, text, kb)
	return nil
}

// confirmToken names one confirmation prompt: every tap on the same prompt
// maps to the same order. Without the prompt's message id no such name
// exists, since every tap has its own callback and update id.
func confirmToken(ev gateway.Event) (string, bool) {
	if ev.MessageID == 0 {
		return "", false
	}
	return fmt.Sprintf("%d:%d", ev.ChatID, ev.MessageID), true
}

func (c *Controller) onConfirm(ctx context.Context, s *Session, ev gateway.Event) error {
	if _, ok := orders.ParseProductID(ev.Control.ID); !ok {
		c.ack(ctx, ev, "")
		c.reply(ctx, ev.ChatID, msgNotFound, nil)
		return nil
	}
	token, ok := confirmToken(ev)
	if !ok {
		c.log.Warnw("confirm without message id ignored", "user_id", ev.From.ID, "product_id", ev.Control.ID)
		c.ack(ctx, ev, msgConfirmAgain)
		return nil
	}
	_, ok, err := c.registered(ctx, ev.From.ID)
	if err != nil {
		return err
	}
	if !ok {
		c.ack(ctx, ev, "")
		return c.onStart(ctx, s, ev)
	}
	if !c.gated(ctx, ev) {
		c.ack(ctx, ev, "")
		return nil
	}

	pl, err := c.svc.PlaceOrder(ctx, orders.PlaceOrderRequest{
		BuyerID:   ev.From.ID,
		BuyerName: ev.From.FirstName,
		ProductID: ev.Control.ID,
		Token:     token,
	})
	switch {
	case errors.Is(err, orders.ErrNotFound):
		c.ack(ctx, ev, "")
		c.edit(ctx, ev.ChatID, ev.MessageID, msgProductNotFound, nil)
		return nil
	case err != nil:
		return err
	case pl.Duplicate:
		c.ack(ctx, ev, msgAlreadyOrdered)
		return nil
	}
	c.ack(ctx, ev, "")
	// removes the confirm control so the prompt cannot be used again
	c.edit(ctx, ev.ChatID, ev.MessageID, placedText(pl.Order), nil)
	return nil
}
