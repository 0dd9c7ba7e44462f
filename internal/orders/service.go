package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-chat-orders/internal/gateway"
	kafkax "github.com/ariefcatur/go-chat-orders/internal/kafka"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Publisher is satisfied by *kafkax.Producer.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// Service owns the order lifecycle: creation, adjudication and the product
// catalog writes, each as one Store transaction followed by notifications.
type Service struct {
	store     Store
	messenger gateway.Messenger
	admins    AdminSet
	log       *zap.SugaredLogger

	events      Publisher // optional
	producer    string
	sendTimeout time.Duration
	fanout      int
	validate    *validatorv10.Validate
	nowFunc     func() time.Time
}

type Option func(*Service)

func WithEvents(p Publisher, producer string) Option {
	return func(s *Service) { s.events, s.producer = p, producer }
}

// WithSendTimeout bounds every single outbound notification.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Service) { s.sendTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.nowFunc = now }
}

func NewService(store Store, messenger gateway.Messenger, admins AdminSet, log *zap.SugaredLogger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		messenger:   messenger,
		admins:      admins,
		log:         log,
		sendTimeout: 3 * time.Second,
		fanout:      8,
		validate:    validatorv10.New(),
		nowFunc:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Admins() AdminSet { return s.admins }

func (s *Service) IsAdmin(userID int64) bool { return s.admins.Contains(userID) }

// Register creates the buyer record on the first phone share. A repeated
// share returns the stored record unchanged.
func (s *Service) Register(ctx context.Context, u User) (User, bool, error) {
	if u.ID == 0 || strings.TrimSpace(u.Phone) == "" {
		return User{}, false, fmt.Errorf("register user: %w", ErrInvalidInput)
	}
	created := false
	err := s.store.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		existing, err := tx.User(ctx, u.ID)
		if err == nil {
			u = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		u.OrdersCount = 0
		if u.RegisteredAt.IsZero() {
			u.RegisteredAt = s.nowFunc().UTC()
		}
		created = true
		return tx.PutUser(ctx, u)
	})
	if err != nil {
		return User{}, false, fmt.Errorf("register user %d: %w", u.ID, err)
	}
	return u, created, nil
}

// AddProduct validates the draft and inserts it under the next product id.
func (s *Service) AddProduct(ctx context.Context, adminID int64, d ProductDraft) (Product, error) {
	if !s.IsAdmin(adminID) {
		return Product{}, ErrUnauthorized
	}
	if err := s.validate.Struct(d); err != nil {
		return Product{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	var p Product
	err := s.store.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		seq, err := tx.NextID(ctx, SeqProduct)
		if err != nil {
			return err
		}
		p = Product{
			ID:          ProductID(seq),
			Seq:         seq,
			Name:        d.Name,
			Price:       d.Price,
			Description: d.Description,
			PhotoRef:    d.PhotoRef,
			CreatedAt:   s.nowFunc().UTC(),
		}
		return tx.PutProduct(ctx, p)
	})
	if err != nil {
		return Product{}, fmt.Errorf("add product: %w", err)
	}
	s.log.Infow("product added", "product_id", p.ID, "admin_id", adminID)
	return p, nil
}

type PlaceOrderRequest struct {
	BuyerID   int64
	BuyerName string
	ProductID string
	// Token identifies one logical confirmation. A second request with the
	// same token returns the first order and has no side effects.
	Token string
}

type Delivery struct {
	ChatID int64
	Err    error
}

type Placement struct {
	Order      Order
	Product    Product
	Buyer      User
	Duplicate  bool
	Bonus      bool
	Deliveries []Delivery
}

// PlaceOrder runs the creation transaction, then notifies the admins and,
// on every BonusEvery-th order, the buyer.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (Placement, error) {
	var pl Placement
	create := func(ctx context.Context, tx Tx) error {
		pl = Placement{}
		if req.Token != "" {
			existing, err := tx.OrderByExternalID(ctx, req.Token)
			if err == nil {
				pl.Order, pl.Duplicate = existing, true
				return nil
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}
		}

		product, err := tx.Product(ctx, req.ProductID)
		if err != nil {
			return fmt.Errorf("product %s: %w", req.ProductID, err)
		}
		buyer, err := tx.User(ctx, req.BuyerID)
		if err != nil {
			return fmt.Errorf("buyer %d: %w", req.BuyerID, err)
		}

		seq, err := tx.NextID(ctx, SeqOrder)
		if err != nil {
			return err
		}
		order := Order{
			ID:         OrderID(seq),
			Seq:        seq,
			ExternalID: req.Token,
			UserID:     buyer.ID,
			ProductID:  product.ID,
			Status:     StatusPending,
			CreatedAt:  s.nowFunc().UTC(),
		}
		if err := tx.PutOrder(ctx, order); err != nil {
			return err
		}

		st, err := tx.Stats(ctx)
		if err != nil {
			return err
		}
		st.Bump(product.ID)
		if err := tx.PutStats(ctx, st); err != nil {
			return err
		}

		buyer.OrdersCount++
		if err := tx.PutUser(ctx, buyer); err != nil {
			return err
		}

		pl.Order, pl.Product, pl.Buyer = order, product, buyer
		return nil
	}
	err := s.store.RunAtomic(ctx, create)
	if errors.Is(err, ErrConflict) {
		// a concurrent confirmation with the same token won; the retry sees
		// its order and returns it as a duplicate
		err = s.store.RunAtomic(ctx, create)
	}
	if err != nil {
		return Placement{}, fmt.Errorf("place order: %w", err)
	}
	if pl.Duplicate {
		s.log.Infow("duplicate confirmation ignored", "order_id", pl.Order.ID, "token", req.Token)
		return pl, nil
	}

	s.log.Infow("order created", "order_id", pl.Order.ID, "product_id", pl.Product.ID, "user_id", pl.Buyer.ID)
	buyerName := req.BuyerName
	if buyerName == "" {
		buyerName = pl.Buyer.DisplayName
	}
	pl.Deliveries = s.notifyAdmins(ctx, pl.Product.PhotoRef, adminNotice(pl.Order, pl.Product, pl.Buyer, buyerName),
		gateway.InlineRow(
			gateway.Button{Text: "✅ Accept", Token: gateway.Token(gateway.ActionAccept, pl.Order.ID)},
			gateway.Button{Text: "❌ Reject", Token: gateway.Token(gateway.ActionReject, pl.Order.ID)},
		))

	if pl.Buyer.OrdersCount > 0 && pl.Buyer.OrdersCount%BonusEvery == 0 {
		pl.Bonus = true
		if err := s.send(ctx, pl.Buyer.ID, bonusNotice(pl.Buyer.OrdersCount)); err != nil {
			s.log.Warnw("bonus notice failed", "user_id", pl.Buyer.ID, "error", err)
		}
	}

	s.emit(ctx, EventOrderCreated, pl.Order.ID, OrderCreatedPayload{
		OrderID:    pl.Order.ID,
		ExternalID: pl.Order.ExternalID,
		UserID:     pl.Order.UserID,
		ProductID:  pl.Order.ProductID,
		Price:      pl.Product.Price,
	})
	return pl, nil
}

// Accept moves a pending order to Accepted.
func (s *Service) Accept(ctx context.Context, adminID int64, orderID string) (Order, error) {
	return s.adjudicate(ctx, adminID, orderID, StatusAccepted, "")
}

// Reject moves a pending order to Rejected and stores reason verbatim.
func (s *Service) Reject(ctx context.Context, adminID int64, orderID, reason string) (Order, error) {
	if strings.TrimSpace(reason) == "" {
		return Order{}, fmt.Errorf("reject reason: %w", ErrInvalidInput)
	}
	return s.adjudicate(ctx, adminID, orderID, StatusRejected, reason)
}

// adjudicate returns the current order together with ErrAlreadyAdjudicated
// when the order has left Pending.
func (s *Service) adjudicate(ctx context.Context, adminID int64, orderID string, to Status, reason string) (Order, error) {
	if !s.IsAdmin(adminID) {
		return Order{}, ErrUnauthorized
	}
	var order Order
	err := s.store.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Order(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order %s: %w", orderID, err)
		}
		order = o
		if !CanTransition(o.Status, to) {
			return ErrAlreadyAdjudicated
		}
		st, err := tx.Stats(ctx)
		if err != nil {
			return err
		}
		now := s.nowFunc().UTC()
		o.Status = to
		o.DecidedBy = adminID
		o.DecidedAt = &now
		switch to {
		case StatusAccepted:
			st.Accepted++
		case StatusRejected:
			st.Rejected++
			o.RejectReason = reason
		}
		if err := tx.PutOrder(ctx, o); err != nil {
			return err
		}
		if err := tx.PutStats(ctx, st); err != nil {
			return err
		}
		order = o
		return nil
	})
	if errors.Is(err, ErrAlreadyAdjudicated) {
		s.log.Infow("order already adjudicated", "order_id", orderID, "status", order.Status, "admin_id", adminID)
		return order, ErrAlreadyAdjudicated
	}
	if err != nil {
		return Order{}, fmt.Errorf("adjudicate: %w", err)
	}
	s.log.Infow("order adjudicated", "order_id", order.ID, "status", order.Status, "admin_id", adminID)

	text := acceptedNotice(order)
	if order.Status == StatusRejected {
		text = rejectedNotice(order)
	}
	if err := s.send(ctx, order.UserID, text); err != nil {
		s.log.Warnw("buyer notice failed", "order_id", order.ID, "user_id", order.UserID, "error", err)
	}
	s.emit(ctx, EventOrderAdjudicated, order.ID, OrderAdjudicatedPayload{
		OrderID:   order.ID,
		Status:    order.Status,
		Reason:    order.RejectReason,
		DecidedBy: adminID,
	})
	return order, nil
}

type OrderView struct {
	Order       Order
	ProductName string
}

// History lists the most recent limit orders of a buyer, oldest first.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]OrderView, error) {
	list, err := s.store.Orders(ctx, OrderFilter{UserID: userID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("order history: %w", err)
	}
	out := make([]OrderView, 0, len(list))
	for _, o := range list {
		v := OrderView{Order: o, ProductName: "Unknown"}
		if p, err := s.store.Product(ctx, o.ProductID); err == nil {
			v.ProductName = p.Name
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) Product(ctx context.Context, id string) (Product, error) {
	return s.store.Product(ctx, id)
}

func (s *Service) User(ctx context.Context, id int64) (User, error) {
	return s.store.User(ctx, id)
}

func (s *Service) Order(ctx context.Context, id string) (Order, error) {
	return s.store.Order(ctx, id)
}

// notifyAdmins delivers to every admin independently; one failure neither
// stops the others nor surfaces as an error.
func (s *Service) notifyAdmins(ctx context.Context, photoRef, caption string, kb *gateway.Keyboard) []Delivery {
	ids := s.admins.IDs()
	out := make([]Delivery, len(ids))
	var g errgroup.Group
	g.SetLimit(s.fanout)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
			defer cancel()
			var err error
			if photoRef != "" {
				err = s.messenger.SendPhoto(sctx, id, photoRef, caption, kb)
			} else {
				err = s.messenger.SendText(sctx, id, caption, kb)
			}
			if err != nil {
				err = fmt.Errorf("%w: %v", ErrGatewayFailure, err)
				s.log.Warnw("admin notification failed", "admin_id", id, "error", err)
			}
			out[i] = Delivery{ChatID: id, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) send(ctx context.Context, chatID int64, text string) error {
	sctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	if err := s.messenger.SendText(sctx, chatID, text, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, eventType, orderID string, payload any) {
	if s.events == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.nowFunc().UTC(),
		Producer:      s.producer,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	if err := s.events.Publish(ctx, PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	); err != nil {
		s.log.Warnw("publish order event failed", "event_type", eventType, "order_id", orderID, "error", err)
	}
}
