package memstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ariefcatur/go-chat-orders/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.RunAtomic(ctx, func(ctx context.Context, tx orders.Tx) error {
		if err := tx.PutUser(ctx, orders.User{ID: 1, DisplayName: "Ann", Phone: "+1"}); err != nil {
			return err
		}
		seq, err := tx.NextID(ctx, orders.SeqProduct)
		if err != nil {
			return err
		}
		return tx.PutProduct(ctx, orders.Product{ID: orders.ProductID(seq), Seq: seq, Name: "Mug", PhotoRef: "p"})
	}))
}

func TestRunAtomic_RollbackOnError(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	err := s.RunAtomic(ctx, func(ctx context.Context, tx orders.Tx) error {
		seq, _ := tx.NextID(ctx, orders.SeqOrder)
		require.NoError(t, tx.PutOrder(ctx, orders.Order{ID: orders.OrderID(seq), Seq: seq, UserID: 1, ProductID: "G1", Status: orders.StatusPending}))
		st, _ := tx.Stats(ctx)
		st.Bump("G1")
		require.NoError(t, tx.PutStats(ctx, st))

		// staged writes are visible inside the transaction
		got, err := tx.Order(ctx, "ORDER_1")
		require.NoError(t, err)
		assert.Equal(t, orders.StatusPending, got.Status)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, err = s.Order(ctx, "ORDER_1")
	assert.ErrorIs(t, err, orders.ErrNotFound)
	st, _ := s.Stats(ctx)
	assert.Zero(t, st.Total)

	// the rolled back id is handed out again
	require.NoError(t, s.RunAtomic(ctx, func(ctx context.Context, tx orders.Tx) error {
		seq, err := tx.NextID(ctx, orders.SeqOrder)
		assert.Equal(t, int64(1), seq)
		return err
	}))
}

func TestTx_ExternalIDUnique(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()
	put := func(id string, seq int64) error {
		return s.RunAtomic(ctx, func(ctx context.Context, tx orders.Tx) error {
			return tx.PutOrder(ctx, orders.Order{ID: id, Seq: seq, ExternalID: "tok", UserID: 1, ProductID: "G1", Status: orders.StatusPending})
		})
	}
	require.NoError(t, put("ORDER_1", 1))
	assert.ErrorIs(t, put("ORDER_2", 2), orders.ErrConflict)

	o, err := s.OrderByExternalID(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "ORDER_1", o.ID)

	_, err = s.OrderByExternalID(ctx, "")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestOrders_FilterAndLimit(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()
	require.NoError(t, s.RunAtomic(ctx, func(ctx context.Context, tx orders.Tx) error {
		for i := int64(1); i <= 6; i++ {
			user := int64(1)
			if i%2 == 0 {
				user = 2
			}
			if err := tx.PutOrder(ctx, orders.Order{ID: orders.OrderID(i), Seq: i, UserID: user, ProductID: "G1", Status: orders.StatusPending}); err != nil {
				return err
			}
		}
		// list reads inside the transaction see staged orders
		list, err := tx.Orders(ctx, orders.OrderFilter{UserID: 2})
		require.NoError(t, err)
		assert.Len(t, list, 3)
		return nil
	}))

	all, err := s.Orders(ctx, orders.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 6)

	recent, err := s.Orders(ctx, orders.OrderFilter{UserID: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "ORDER_3", recent[0].ID)
	assert.Equal(t, "ORDER_5", recent[1].ID)
}

func TestStats_CopiesAreIndependent(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.RunAtomic(ctx, func(ctx context.Context, tx orders.Tx) error {
		st := orders.Stats{}
		st.Bump("G1")
		return tx.PutStats(ctx, st)
	}))
	st, _ := s.Stats(ctx)
	st.Products[0].Count = 99
	again, _ := s.Stats(ctx)
	assert.Equal(t, int64(1), again.Products[0].Count)
}

func TestOpen_PersistsFourFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	seed(t, s)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.RunAtomic(ctx, func(ctx context.Context, tx orders.Tx) error {
		seq, _ := tx.NextID(ctx, orders.SeqOrder)
		o := orders.Order{ID: orders.OrderID(seq), Seq: seq, ExternalID: "1:9", UserID: 1, ProductID: "G1", Status: orders.StatusPending, CreatedAt: now}
		if err := tx.PutOrder(ctx, o); err != nil {
			return err
		}
		st, _ := tx.Stats(ctx)
		st.Bump("G1")
		return tx.PutStats(ctx, st)
	}))

	current, err := os.ReadFile(filepath.Join(dir, "CURRENT"))
	require.NoError(t, err)
	assert.Equal(t, "gen-000002\n", string(current))
	for _, name := range []string{"users.json", "products.json", "orders.json", "stats.json"} {
		_, err := os.Stat(filepath.Join(dir, "gen-000002", name))
		assert.NoError(t, err, name)
	}
	gens, _ := filepath.Glob(filepath.Join(dir, "gen-*"))
	assert.Len(t, gens, 1, "older generations are removed")
	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	assert.Empty(t, leftovers)

	reopened, err := Open(dir)
	require.NoError(t, err)
	o, err := reopened.OrderByExternalID(ctx, "1:9")
	require.NoError(t, err)
	assert.Equal(t, now, o.CreatedAt)
	st, _ := reopened.Stats(ctx)
	assert.Equal(t, int64(1), st.Count("G1"))

	// sequences continue after a restart
	require.NoError(t, reopened.RunAtomic(ctx, func(ctx context.Context, tx orders.Tx) error {
		p, _ := tx.NextID(ctx, orders.SeqProduct)
		o, _ := tx.NextID(ctx, orders.SeqOrder)
		assert.Equal(t, int64(2), p)
		assert.Equal(t, int64(2), o)
		return nil
	}))
}

func TestRunAtomic_FailedPersistKeepsPreviousState(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	seed(t, s)
	ctx := context.Background()

	createOrder := func(ctx context.Context, tx orders.Tx) error {
		seq, _ := tx.NextID(ctx, orders.SeqOrder)
		o := orders.Order{ID: orders.OrderID(seq), Seq: seq, UserID: 1, ProductID: "G1", Status: orders.StatusPending}
		if err := tx.PutOrder(ctx, o); err != nil {
			return err
		}
		st, _ := tx.Stats(ctx)
		st.Bump("G1")
		return tx.PutStats(ctx, st)
	}

	// users, products and orders reach disk; stats does not
	writeCollection = func(path string, v any) error {
		if filepath.Base(path) == statsFile {
			return errBoom
		}
		return writeJSON(path, v)
	}
	t.Cleanup(func() { writeCollection = writeJSON })

	err = s.RunAtomic(ctx, createOrder)
	require.ErrorIs(t, err, errBoom)
	list, _ := s.Orders(ctx, orders.OrderFilter{})
	assert.Empty(t, list)

	reopened, err := Open(dir)
	require.NoError(t, err)
	list, _ = reopened.Orders(ctx, orders.OrderFilter{})
	assert.Empty(t, list)
	st, _ := reopened.Stats(ctx)
	assert.Zero(t, st.Total)
	_, err = reopened.Product(ctx, "G1")
	assert.NoError(t, err)

	// the next commit succeeds and the totals agree after a restart
	writeCollection = writeJSON
	require.NoError(t, s.RunAtomic(ctx, createOrder))
	reopened, err = Open(dir)
	require.NoError(t, err)
	list, _ = reopened.Orders(ctx, orders.OrderFilter{})
	st, _ = reopened.Stats(ctx)
	assert.Len(t, list, 1)
	assert.Equal(t, int64(len(list)), st.Total)
}

func TestOpen_BadCurrentPointer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CURRENT"), []byte("latest\n"), 0o644))
	_, err := Open(dir)
	assert.Error(t, err)
}

func TestOpen_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.json"), []byte("{not json"), 0o644))
	_, err := Open(dir)
	assert.Error(t, err)
}

func TestRunAtomic_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := New().RunAtomic(ctx, func(ctx context.Context, tx orders.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
