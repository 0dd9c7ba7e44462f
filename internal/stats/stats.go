// Package stats derives rankings and rates from the stored order counters.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ariefcatur/go-chat-orders/internal/orders"
)

type Summary struct {
	Total          int64   `json:"total"`
	Accepted       int64   `json:"accepted"`
	Rejected       int64   `json:"rejected"`
	Pending        int64   `json:"pending"`
	AcceptanceRate float64 `json:"acceptance_rate"` // 0..1
}

type Ranked struct {
	Rank      int    `json:"rank"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Count     int64  `json:"count"`
}

type Report struct {
	Summary
	Top []Ranked `json:"top"`
}

// AcceptanceRate is accepted/total, and 0 when there are no orders.
func AcceptanceRate(st orders.Stats) float64 {
	if st.Total == 0 {
		return 0
	}
	return float64(st.Accepted) / float64(st.Total)
}

func Summarize(st orders.Stats) Summary {
	return Summary{
		Total:          st.Total,
		Accepted:       st.Accepted,
		Rejected:       st.Rejected,
		Pending:        st.Pending(),
		AcceptanceRate: AcceptanceRate(st),
	}
}

// TopN returns at most n buckets by descending count. Equal counts keep the
// order in which the products got their first order. n <= 0 returns all.
func TopN(st orders.Stats, n int) []orders.ProductCount {
	out := append([]orders.ProductCount(nil), st.Products...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

type Aggregator struct {
	Store orders.Reader
}

func (a Aggregator) Summary(ctx context.Context) (Summary, error) {
	st, err := a.Store.Stats(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("read stats: %w", err)
	}
	return Summarize(st), nil
}

// Report reads the counters once and resolves product names for the top n.
// Products missing from the catalog are reported as "Unknown".
func (a Aggregator) Report(ctx context.Context, n int) (Report, error) {
	st, err := a.Store.Stats(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("read stats: %w", err)
	}
	rep := Report{Summary: Summarize(st), Top: []Ranked{}}
	for i, pc := range TopN(st, n) {
		name := "Unknown"
		p, err := a.Store.Product(ctx, pc.ProductID)
		switch {
		case err == nil:
			name = p.Name
		case !errors.Is(err, orders.ErrNotFound):
			return Report{}, fmt.Errorf("resolve product %s: %w", pc.ProductID, err)
		}
		rep.Top = append(rep.Top, Ranked{Rank: i + 1, ProductID: pc.ProductID, Name: name, Count: pc.Count})
	}
	return rep, nil
}
