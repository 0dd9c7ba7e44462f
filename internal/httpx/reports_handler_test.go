package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ariefcatur/go-chat-orders/internal/memstore"
	"github.com/ariefcatur/go-chat-orders/internal/orders"
	"github.com/ariefcatur/go-chat-orders/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newServer(t *testing.T, store orders.Reader) *httptest.Server {
	t.Helper()
	log := zap.NewNop().Sugar()
	r := NewRouter(log)
	(&ReportsHandler{Store: store, Log: log}).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func seeded(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New()
	require.NoError(t, s.RunAtomic(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		if err := tx.PutUser(ctx, orders.User{ID: 7, DisplayName: "Ann", Phone: "+100", OrdersCount: 3}); err != nil {
			return err
		}
		for _, p := range []orders.Product{
			{ID: "G1", Seq: 1, Name: "Mug", Price: 50000, PhotoRef: "a"},
			{ID: "G2", Seq: 2, Name: "Cap", Price: 75000, PhotoRef: "b"},
		} {
			if err := tx.PutProduct(ctx, p); err != nil {
				return err
			}
		}
		var st orders.Stats
		for i, pid := range []string{"G2", "G1", "G9"} {
			seq := int64(i + 1)
			o := orders.Order{ID: orders.OrderID(seq), Seq: seq, UserID: 7, ProductID: pid, Status: orders.StatusPending}
			if err := tx.PutOrder(ctx, o); err != nil {
				return err
			}
			st.Bump(pid)
		}
		st.Bump("G1")
		st.Accepted = 1
		return tx.PutStats(ctx, st)
	}))
	return s
}

func get(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	srv := newServer(t, memstore.New())
	assert.Equal(t, http.StatusOK, get(t, srv, "/healthz", nil))
}

func TestStats(t *testing.T) {
	srv := newServer(t, seeded(t))

	var rep stats.Report
	require.Equal(t, http.StatusOK, get(t, srv, "/v1/stats?top=2", &rep))
	assert.Equal(t, int64(4), rep.Total)
	assert.Equal(t, int64(3), rep.Pending)
	assert.InDelta(t, 0.25, rep.AcceptanceRate, 1e-9)
	require.Len(t, rep.Top, 2)
	assert.Equal(t, stats.Ranked{Rank: 1, ProductID: "G1", Name: "Mug", Count: 2}, rep.Top[0])
	assert.Equal(t, "G2", rep.Top[1].ProductID)

	require.Equal(t, http.StatusOK, get(t, srv, "/v1/stats", &rep))
	assert.Len(t, rep.Top, 3)
	assert.Equal(t, "Unknown", rep.Top[2].Name)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/stats?top=-1", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/stats?top=x", nil))
}

func TestStats_Empty(t *testing.T) {
	srv := newServer(t, memstore.New())

	var rep stats.Report
	require.Equal(t, http.StatusOK, get(t, srv, "/v1/stats", &rep))
	assert.Zero(t, rep.Total)
	assert.Zero(t, rep.AcceptanceRate)
	assert.Empty(t, rep.Top)
}

func TestProducts(t *testing.T) {
	srv := newServer(t, seeded(t))

	var list []orders.Product
	require.Equal(t, http.StatusOK, get(t, srv, "/v1/products", &list))
	require.Len(t, list, 2)
	assert.Equal(t, "G1", list[0].ID)

	var p orders.Product
	require.Equal(t, http.StatusOK, get(t, srv, "/v1/products/G2", &p))
	assert.Equal(t, int64(75000), p.Price)

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/v1/products/G5", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/products/mug", nil))
}

func TestOrders(t *testing.T) {
	srv := newServer(t, seeded(t))

	var o orders.Order
	require.Equal(t, http.StatusOK, get(t, srv, "/v1/orders/ORDER_2", &o))
	assert.Equal(t, "G1", o.ProductID)
	assert.Equal(t, orders.StatusPending, o.Status)

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/v1/orders/ORDER_99", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/orders/2", nil))
}

func TestUserOrders(t *testing.T) {
	srv := newServer(t, seeded(t))

	var list []userOrder
	require.Equal(t, http.StatusOK, get(t, srv, "/v1/users/7/orders?limit=2", &list))
	require.Len(t, list, 2)
	assert.Equal(t, "ORDER_2", list[0].ID)
	assert.Equal(t, "Mug", list[0].ProductName)
	assert.Equal(t, "Unknown", list[1].ProductName)

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/v1/users/8/orders", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/users/abc/orders", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/users/0/orders", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/users/-7/orders", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/users/7/orders?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/users/7/orders?limit=101", nil))
}

type brokenStore struct{ orders.Reader }

func (brokenStore) Products(context.Context) ([]orders.Product, error) {
	return nil, errors.New("connection reset")
}

func TestStoreFailureIs500(t *testing.T) {
	srv := newServer(t, brokenStore{memstore.New()})
	assert.Equal(t, http.StatusInternalServerError, get(t, srv, "/v1/products", nil))
}
