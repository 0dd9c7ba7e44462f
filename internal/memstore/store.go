// Package memstore is an in-process orders.Store with optional JSON file
// persistence.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ariefcatur/go-chat-orders/internal/orders"
)

type data struct {
	users    map[int64]orders.User
	products map[string]orders.Product
	orders   map[string]orders.Order
	byExt    map[string]string // external id -> order id
	stats    orders.Stats
	seq      map[orders.Sequence]int64
}

func newData() data {
	return data{
		users:    map[int64]orders.User{},
		products: map[string]orders.Product{},
		orders:   map[string]orders.Order{},
		byExt:    map[string]string{},
		seq:      map[orders.Sequence]int64{},
	}
}

// Store keeps everything behind one RWMutex. RunAtomic holds the write lock
// for the whole transaction, so compound sequences never interleave.
type Store struct {
	mu  sync.RWMutex
	d   data
	dir string // empty = no persistence
	gen int64  // committed generation under dir
}

var _ orders.Store = (*Store)(nil)

func New() *Store {
	return &Store{d: newData()}
}

// Open loads dir (creating it if missing) and persists every commit there.
func Open(dir string) (*Store, error) {
	d, gen, err := load(dir)
	if err != nil {
		return nil, fmt.Errorf("memstore open %s: %w", dir, err)
	}
	return &Store{d: d, dir: dir, gen: gen}, nil
}

func (s *Store) User(ctx context.Context, id int64) (orders.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.user(id)
}

func (s *Store) Product(ctx context.Context, id string) (orders.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.product(id)
}

func (s *Store) Order(ctx context.Context, id string) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.order(id)
}

func (s *Store) OrderByExternalID(ctx context.Context, externalID string) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.orderByExt(externalID)
}

func (s *Store) Products(ctx context.Context) ([]orders.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.productList(), nil
}

func (s *Store) Orders(ctx context.Context, f orders.OrderFilter) ([]orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterOrders(s.d.orderList(), f), nil
}

func (s *Store) Stats(ctx context.Context) (orders.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.stats.Clone(), nil
}

func (s *Store) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newTx(&s.d)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if tx.empty() {
		return nil
	}
	next := s.d
	if s.dir != "" {
		next = s.d.clone()
	}
	tx.apply(&next)
	if s.dir != "" {
		if err := persist(s.dir, s.gen+1, next); err != nil {
			return fmt.Errorf("memstore persist: %w", err)
		}
		s.gen++
	}
	s.d = next
	return nil
}

func (d *data) user(id int64) (orders.User, error) {
	u, ok := d.users[id]
	if !ok {
		return orders.User{}, fmt.Errorf("user %d: %w", id, orders.ErrNotFound)
	}
	return u, nil
}

func (d *data) product(id string) (orders.Product, error) {
	p, ok := d.products[id]
	if !ok {
		return orders.Product{}, fmt.Errorf("product %s: %w", id, orders.ErrNotFound)
	}
	return p, nil
}

func (d *data) order(id string) (orders.Order, error) {
	o, ok := d.orders[id]
	if !ok {
		return orders.Order{}, fmt.Errorf("order %s: %w", id, orders.ErrNotFound)
	}
	return o, nil
}

func (d *data) orderByExt(ext string) (orders.Order, error) {
	id, ok := d.byExt[ext]
	if !ok || ext == "" {
		return orders.Order{}, fmt.Errorf("order with external id %q: %w", ext, orders.ErrNotFound)
	}
	return d.order(id)
}

func (d *data) productList() []orders.Product {
	out := make([]orders.Product, 0, len(d.products))
	for _, p := range d.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (d *data) orderList() []orders.Order {
	out := make([]orders.Order, 0, len(d.orders))
	for _, o := range d.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (d data) clone() data {
	c := newData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.byExt {
		c.byExt[k] = v
	}
	for k, v := range d.seq {
		c.seq[k] = v
	}
	c.stats = d.stats.Clone()
	return c
}

// filterOrders expects list sorted by Seq and keeps that order.
func filterOrders(list []orders.Order, f orders.OrderFilter) []orders.Order {
	out := list[:0:0]
	for _, o := range list {
		if f.UserID != 0 && o.UserID != f.UserID {
			continue
		}
		out = append(out, o)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}
