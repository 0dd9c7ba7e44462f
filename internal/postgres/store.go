package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-chat-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxExecutor matches both *pgxpool.Pool and pgx.Tx.
type PgxExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db *pgxpool.Pool
}

var _ orders.Store = (*Store)(nil)

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

type txKey struct{}

// RunAtomic opens a transaction, hands fn a Tx bound to it and commits when
// fn returns nil. The pgx.Tx also rides in ctx so nested Store reads join it.
func (s *Store) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return errors.New("postgres: nested RunAtomic")
	}
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// no-op after a successful commit
	defer func() { _ = tx.Rollback(ctx) }()

	ctx = context.WithValue(ctx, txKey{}, tx)
	if err := fn(ctx, &txQueries{queries{q: tx, lock: true}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", mapErr(err))
	}
	return nil
}

func (s *Store) getExecutor(ctx context.Context) queries {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return queries{q: tx, lock: true}
	}
	return queries{q: s.db}
}

func (s *Store) User(ctx context.Context, id int64) (orders.User, error) {
	return s.getExecutor(ctx).User(ctx, id)
}

func (s *Store) Product(ctx context.Context, id string) (orders.Product, error) {
	return s.getExecutor(ctx).Product(ctx, id)
}

func (s *Store) Order(ctx context.Context, id string) (orders.Order, error) {
	return s.getExecutor(ctx).Order(ctx, id)
}

func (s *Store) OrderByExternalID(ctx context.Context, externalID string) (orders.Order, error) {
	return s.getExecutor(ctx).OrderByExternalID(ctx, externalID)
}

func (s *Store) Products(ctx context.Context) ([]orders.Product, error) {
	return s.getExecutor(ctx).Products(ctx)
}

func (s *Store) Orders(ctx context.Context, f orders.OrderFilter) ([]orders.Order, error) {
	return s.getExecutor(ctx).Orders(ctx, f)
}

func (s *Store) Stats(ctx context.Context) (orders.Stats, error) {
	return s.getExecutor(ctx).Stats(ctx)
}

// queries runs reads against either the pool or a transaction. Inside a
// transaction, lock adds FOR UPDATE to the rows compound writes depend on.
type queries struct {
	q    PgxExecutor
	lock bool
}

func (r queries) forUpdate() string {
	if r.lock {
		return " FOR UPDATE"
	}
	return ""
}

const userCols = `id, display_name, handle, phone, registered_at, orders_count`

func (r queries) User(ctx context.Context, id int64) (orders.User, error) {
	var u orders.User
	err := r.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`+r.forUpdate(), id).
		Scan(&u.ID, &u.DisplayName, &u.Handle, &u.Phone, &u.RegisteredAt, &u.OrdersCount)
	if err != nil {
		return orders.User{}, notFound(err, "user %d", id)
	}
	return u, nil
}

const productCols = `id, seq, name, price, description, photo_ref, created_at`

func scanProduct(row pgx.Row) (orders.Product, error) {
	var p orders.Product
	err := row.Scan(&p.ID, &p.Seq, &p.Name, &p.Price, &p.Description, &p.PhotoRef, &p.CreatedAt)
	return p, err
}

// Products are immutable and never locked.
func (r queries) Product(ctx context.Context, id string) (orders.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
	if err != nil {
		return orders.Product{}, notFound(err, "product %s", id)
	}
	return p, nil
}

func (r queries) Products(ctx context.Context) ([]orders.Product, error) {
	rows, err := r.q.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const orderCols = `id, seq, COALESCE(external_id, ''), user_id, product_id, status, reject_reason, decided_by, created_at, decided_at`

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		status string
	)
	err := row.Scan(&o.ID, &o.Seq, &o.ExternalID, &o.UserID, &o.ProductID, &status, &o.RejectReason, &o.DecidedBy, &o.CreatedAt, &o.DecidedAt)
	o.Status = orders.Status(status)
	return o, err
}

func (r queries) Order(ctx context.Context, id string) (orders.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`+r.forUpdate(), id))
	if err != nil {
		return orders.Order{}, notFound(err, "order %s", id)
	}
	return o, nil
}

func (r queries) OrderByExternalID(ctx context.Context, externalID string) (orders.Order, error) {
	if externalID == "" {
		return orders.Order{}, fmt.Errorf("order without external id: %w", orders.ErrNotFound)
	}
	o, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE external_id=$1`+r.forUpdate(), externalID))
	if err != nil {
		return orders.Order{}, notFound(err, "order with external id %q", externalID)
	}
	return o, nil
}

func (r queries) Orders(ctx context.Context, f orders.OrderFilter) ([]orders.Order, error) {
	rows, err := r.q.Query(ctx, `
		SELECT * FROM (
			SELECT `+orderCols+` FROM orders
			WHERE ($1::bigint = 0 OR user_id = $1)
			ORDER BY seq DESC
			LIMIT NULLIF($2::bigint, 0)
		) recent ORDER BY seq`, f.UserID, int64(f.Limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r queries) Stats(ctx context.Context) (orders.Stats, error) {
	var (
		st  orders.Stats
		raw []byte
	)
	err := r.q.QueryRow(ctx, `SELECT total, accepted, rejected, products FROM stats WHERE id=1`+r.forUpdate()).
		Scan(&st.Total, &st.Accepted, &st.Rejected, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Stats{}, nil
	}
	if err != nil {
		return orders.Stats{}, err
	}
	if err := json.Unmarshal(raw, &st.Products); err != nil {
		return orders.Stats{}, fmt.Errorf("decode product counts: %w", err)
	}
	return st, nil
}

// txQueries adds the write side; it only ever wraps a pgx.Tx.
type txQueries struct {
	queries
}

func (t *txQueries) PutUser(ctx context.Context, u orders.User) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO users(`+userCols+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			handle       = EXCLUDED.handle,
			phone        = EXCLUDED.phone,
			orders_count = EXCLUDED.orders_count`,
		u.ID, u.DisplayName, u.Handle, u.Phone, u.RegisteredAt, u.OrdersCount)
	return mapErr(err)
}

func (t *txQueries) PutProduct(ctx context.Context, p orders.Product) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO products(`+productCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Seq, p.Name, p.Price, p.Description, p.PhotoRef, p.CreatedAt)
	return mapErr(err)
}

func (t *txQueries) PutOrder(ctx context.Context, o orders.Order) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO orders(id, seq, external_id, user_id, product_id, status, reject_reason, decided_by, created_at, decided_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status        = EXCLUDED.status,
			reject_reason = EXCLUDED.reject_reason,
			decided_by    = EXCLUDED.decided_by,
			decided_at    = EXCLUDED.decided_at`,
		o.ID, o.Seq, o.ExternalID, o.UserID, o.ProductID, string(o.Status), o.RejectReason, o.DecidedBy, o.CreatedAt, o.DecidedAt)
	return mapErr(err)
}

func (t *txQueries) PutStats(ctx context.Context, s orders.Stats) error {
	products := s.Products
	if products == nil {
		products = []orders.ProductCount{}
	}
	raw, err := json.Marshal(products)
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx, `
		INSERT INTO stats(id, total, accepted, rejected, products)
		VALUES (1, $1, $2, $3, $4::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			total    = EXCLUDED.total,
			accepted = EXCLUDED.accepted,
			rejected = EXCLUDED.rejected,
			products = EXCLUDED.products`,
		s.Total, s.Accepted, s.Rejected, string(raw))
	return mapErr(err)
}

// NextID bumps the sequence row; the row stays locked until the transaction
// ends, and a rollback gives the value back.
func (t *txQueries) NextID(ctx context.Context, seq orders.Sequence) (int64, error) {
	var v int64
	err := t.q.QueryRow(ctx, `
		INSERT INTO sequences(name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		RETURNING value`, string(seq)).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", seq, err)
	}
	return v, nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, orders.ErrNotFound)...)
	}
	return err
}

func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, orders.ErrConflict)
	}
	return err
}
