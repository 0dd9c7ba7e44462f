package orders

import "context"

// OrderFilter narrows Reader.Orders. Zero value lists everything.
type OrderFilter struct {
	UserID int64 // 0 = any user
	Limit  int   // keep only the most recent Limit orders; 0 = all
}

// Reader is the read side shared by a Store and its transactions. Lookups
// return ErrNotFound when the key is absent. Lists are sorted by id sequence.
type Reader interface {
	User(ctx context.Context, id int64) (User, error)
	Product(ctx context.Context, id string) (Product, error)
	Order(ctx context.Context, id string) (Order, error)
	OrderByExternalID(ctx context.Context, externalID string) (Order, error)
	Products(ctx context.Context) ([]Product, error)
	Orders(ctx context.Context, f OrderFilter) ([]Order, error)
	Stats(ctx context.Context) (Stats, error)
}

// Tx is a compound read-modify-write unit. Nothing written through a Tx is
// visible outside it until RunAtomic returns nil.
type Tx interface {
	Reader
	PutUser(ctx context.Context, u User) error
	PutProduct(ctx context.Context, p Product) error
	PutOrder(ctx context.Context, o Order) error
	PutStats(ctx context.Context, s Stats) error
	// NextID allocates the next value of seq. The allocation is part of the
	// transaction and is released if the transaction does not commit.
	NextID(ctx context.Context, seq Sequence) (int64, error)
}

type Store interface {
	Reader
	// RunAtomic runs fn as one transaction. Transactions that touch Stats or
	// a sequence are serialized. If fn returns an error nothing is committed.
	RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
