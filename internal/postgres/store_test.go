package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/ariefcatur/go-chat-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore gives every test its own schema on TEST_POSTGRES_DSN.
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	schemaName := "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	admin, err := Connect(ctx, dsn)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schemaName)
	require.NoError(t, err)

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schemaName
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, pool))

	t.Cleanup(func() {
		pool.Close()
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schemaName+" CASCADE")
		admin.Close()
	})
	return NewStore(pool)
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.RunAtomic(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		if err := tx.PutUser(ctx, orders.User{ID: 1, DisplayName: "Ann", Phone: "+1"}); err != nil {
			return err
		}
		seq, err := tx.NextID(ctx, orders.SeqProduct)
		if err != nil {
			return err
		}
		return tx.PutProduct(ctx, orders.Product{ID: orders.ProductID(seq), Seq: seq, Name: "Mug", Price: 50000, PhotoRef: "p"})
	}))
}

func createOrder(ctx context.Context, s *Store, token string) (orders.Order, error) {
	var o orders.Order
	err := s.RunAtomic(ctx, func(ctx context.Context, tx orders.Tx) error {
		seq, err := tx.NextID(ctx, orders.SeqOrder)
		if err != nil {
			return err
		}
		o = orders.Order{ID: orders.OrderID(seq), Seq: seq, ExternalID: token, UserID: 1, ProductID: "G1", Status: orders.StatusPending}
		if err := tx.PutOrder(ctx, o); err != nil {
			return err
		}
		st, err := tx.Stats(ctx)
		if err != nil {
			return err
		}
		st.Bump("G1")
		return tx.PutStats(ctx, st)
	})
	return o, err
}

func TestStore_RoundTrip(t *testing.T) {
	s := testStore(t)
	seed(t, s)
	ctx := context.Background()

	p, err := s.Product(ctx, "G1")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), p.Price)

	o, err := createOrder(ctx, s, "1:5")
	require.NoError(t, err)
	assert.Equal(t, "ORDER_1", o.ID)

	got, err := s.OrderByExternalID(ctx, "1:5")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Nil(t, got.DecidedAt)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Total)
	assert.Equal(t, []orders.ProductCount{{ProductID: "G1", Count: 1}}, st.Products)

	_, err = s.Order(ctx, "ORDER_9")
	assert.ErrorIs(t, err, orders.ErrNotFound)
	_, err = s.User(ctx, 42)
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestStore_RollbackReleasesID(t *testing.T) {
	s := testStore(t)
	seed(t, s)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.RunAtomic(ctx, func(ctx context.Context, tx orders.Tx) error {
		if _, err := tx.NextID(ctx, orders.SeqOrder); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	o, err := createOrder(ctx, s, "")
	require.NoError(t, err)
	assert.Equal(t, "ORDER_1", o.ID)
}

func TestStore_DuplicateExternalIDConflicts(t *testing.T) {
	s := testStore(t)
	seed(t, s)
	ctx := context.Background()

	_, err := createOrder(ctx, s, "tok")
	require.NoError(t, err)
	_, err = createOrder(ctx, s, "tok")
	assert.ErrorIs(t, err, orders.ErrConflict)

	// empty tokens are stored as NULL and never collide
	_, err = createOrder(ctx, s, "")
	require.NoError(t, err)
	_, err = createOrder(ctx, s, "")
	require.NoError(t, err)
}

func TestStore_ConcurrentCreatesAreGapless(t *testing.T) {
	s := testStore(t)
	seed(t, s)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := createOrder(ctx, s, fmt.Sprintf("t%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	list, err := s.Orders(ctx, orders.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, list, n)
	for i, o := range list {
		assert.Equal(t, int64(i+1), o.Seq)
	}
	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n), st.Total)

	recent, err := s.Orders(ctx, orders.OrderFilter{UserID: 1, Limit: 3})
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, int64(n-2), recent[0].Seq)
}
