package memstore

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-chat-orders/internal/orders"
)

// tx stages writes over the committed data. Reads see staged values first.
type tx struct {
	base *data

	users    map[int64]orders.User
	products map[string]orders.Product
	orders   map[string]orders.Order
	stats    *orders.Stats
	seq      map[orders.Sequence]int64
}

func newTx(base *data) *tx {
	return &tx{
		base:     base,
		users:    map[int64]orders.User{},
		products: map[string]orders.Product{},
		orders:   map[string]orders.Order{},
		seq:      map[orders.Sequence]int64{},
	}
}

func (t *tx) empty() bool {
	return len(t.users) == 0 && len(t.products) == 0 && len(t.orders) == 0 && t.stats == nil && len(t.seq) == 0
}

func (t *tx) apply(d *data) {
	for k, v := range t.users {
		d.users[k] = v
	}
	for k, v := range t.products {
		d.products[k] = v
	}
	for k, v := range t.orders {
		d.orders[k] = v
		if v.ExternalID != "" {
			d.byExt[v.ExternalID] = k
		}
	}
	if t.stats != nil {
		d.stats = t.stats.Clone()
	}
	for k, v := range t.seq {
		d.seq[k] = v
	}
}

func (t *tx) User(ctx context.Context, id int64) (orders.User, error) {
	if u, ok := t.users[id]; ok {
		return u, nil
	}
	return t.base.user(id)
}

func (t *tx) Product(ctx context.Context, id string) (orders.Product, error) {
	if p, ok := t.products[id]; ok {
		return p, nil
	}
	return t.base.product(id)
}

func (t *tx) Order(ctx context.Context, id string) (orders.Order, error) {
	if o, ok := t.orders[id]; ok {
		return o, nil
	}
	return t.base.order(id)
}

func (t *tx) OrderByExternalID(ctx context.Context, externalID string) (orders.Order, error) {
	if externalID != "" {
		for _, o := range t.orders {
			if o.ExternalID == externalID {
				return o, nil
			}
		}
	}
	return t.base.orderByExt(externalID)
}

func (t *tx) Products(ctx context.Context) ([]orders.Product, error) {
	d := t.merged()
	return d.productList(), nil
}

func (t *tx) Orders(ctx context.Context, f orders.OrderFilter) ([]orders.Order, error) {
	d := t.merged()
	return filterOrders(d.orderList(), f), nil
}

func (t *tx) Stats(ctx context.Context) (orders.Stats, error) {
	if t.stats != nil {
		return t.stats.Clone(), nil
	}
	return t.base.stats.Clone(), nil
}

func (t *tx) PutUser(ctx context.Context, u orders.User) error {
	if u.ID == 0 {
		return fmt.Errorf("put user: %w", orders.ErrInvalidInput)
	}
	t.users[u.ID] = u
	return nil
}

func (t *tx) PutProduct(ctx context.Context, p orders.Product) error {
	if p.ID == "" {
		return fmt.Errorf("put product: %w", orders.ErrInvalidInput)
	}
	t.products[p.ID] = p
	return nil
}

func (t *tx) PutOrder(ctx context.Context, o orders.Order) error {
	if o.ID == "" {
		return fmt.Errorf("put order: %w", orders.ErrInvalidInput)
	}
	if o.ExternalID != "" {
		if prev, err := t.OrderByExternalID(ctx, o.ExternalID); err == nil && prev.ID != o.ID {
			return fmt.Errorf("put order %s: external id %q taken by %s: %w", o.ID, o.ExternalID, prev.ID, orders.ErrConflict)
		}
	}
	t.orders[o.ID] = o
	return nil
}

func (t *tx) PutStats(ctx context.Context, s orders.Stats) error {
	c := s.Clone()
	t.stats = &c
	return nil
}

func (t *tx) NextID(ctx context.Context, seq orders.Sequence) (int64, error) {
	cur, ok := t.seq[seq]
	if !ok {
		cur = t.base.seq[seq]
	}
	cur++
	t.seq[seq] = cur
	return cur, nil
}

// merged is a throwaway view for list reads inside a transaction.
func (t *tx) merged() data {
	d := t.base.clone()
	t.apply(&d)
	return d
}
