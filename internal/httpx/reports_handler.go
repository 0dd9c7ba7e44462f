package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-chat-orders/internal/orders"
	"github.com/ariefcatur/go-chat-orders/internal/stats"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	defaultTop   = 5
	defaultLimit = 10
	maxLimit     = 100
)

// ReportsHandler serves read-only views of the catalog, orders and counters.
type ReportsHandler struct {
	Store orders.Reader
	Log   *zap.SugaredLogger
}

func (h *ReportsHandler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", h.getStats)
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)
		r.Get("/orders/{id}", h.getOrder)
		r.Get("/users/{id}/orders", h.userOrders)
	})
}

type userOrder struct {
	orders.Order
	ProductName string `json:"product_name"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *ReportsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, orders.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	h.Log.Errorw("report query failed", "uri", r.RequestURI, "err", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (h *ReportsHandler) getStats(w http.ResponseWriter, r *http.Request) {
	top, ok := queryInt(r, "top", defaultTop)
	if !ok {
		badRequest(w, "top must be a non-negative integer")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rep, err := stats.Aggregator{Store: h.Store}.Report(ctx, top)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *ReportsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Store.Products(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ps == nil {
		ps = []orders.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ReportsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := orders.ParseProductID(id); !ok {
		badRequest(w, "invalid product id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.Product(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ReportsHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := orders.ParseOrderID(id); !ok {
		badRequest(w, "invalid order id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Store.Order(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *ReportsHandler) userOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	// 0 would mean "any user" to the order filter
	if err != nil || userID <= 0 {
		badRequest(w, "invalid user id")
		return
	}
	limit, ok := queryInt(r, "limit", defaultLimit)
	if !ok || limit == 0 || limit > maxLimit {
		badRequest(w, "limit must be between 1 and 100")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if _, err := h.Store.User(ctx, userID); err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.Store.Orders(ctx, orders.OrderFilter{UserID: userID, Limit: limit})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]userOrder, 0, len(list))
	for _, o := range list {
		name := "Unknown"
		if p, err := h.Store.Product(ctx, o.ProductID); err == nil {
			name = p.Name
		}
		out = append(out, userOrder{Order: o, ProductName: name})
	}
	writeJSON(w, http.StatusOK, out)
}
