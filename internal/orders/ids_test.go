package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIDs(t *testing.T) {
	n, ok := ParseProductID("G12")
	assert.True(t, ok)
	assert.Equal(t, int64(12), n)

	n, ok = ParseOrderID("ORDER_7")
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)

	for _, bad := range []string{"", "G", "G0", "G-1", "g1", "G1a", "G 1", "ORDER_1"} {
		_, ok := ParseProductID(bad)
		assert.False(t, ok, bad)
	}
	for _, bad := range []string{"ORDER_", "ORDER", "ORDER_x", "G1", "ORDER_1_2"} {
		_, ok := ParseOrderID(bad)
		assert.False(t, ok, bad)
	}
}

func TestIsProductToken(t *testing.T) {
	assert.True(t, IsProductToken(" G3 "))
	assert.False(t, IsProductToken("Give me G3"))
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusAccepted))
	assert.True(t, CanTransition(StatusPending, StatusRejected))
	assert.False(t, CanTransition(StatusAccepted, StatusRejected))
	assert.False(t, CanTransition(StatusRejected, StatusAccepted))
	assert.False(t, CanTransition(StatusAccepted, StatusAccepted))
	assert.False(t, CanTransition(StatusPending, StatusPending))

	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusAccepted.Terminal())
	assert.False(t, Status("CREATED").Valid())
}

func TestStats_Bump(t *testing.T) {
	var s Stats
	s.Bump("G2")
	s.Bump("G1")
	s.Bump("G2")
	assert.Equal(t, int64(3), s.Total)
	assert.Equal(t, []ProductCount{{"G2", 2}, {"G1", 1}}, s.Products)

	c := s.Clone()
	c.Bump("G1")
	assert.Equal(t, int64(1), s.Count("G1"))
	assert.Equal(t, int64(2), c.Count("G1"))
}

func TestFormatPrice(t *testing.T) {
	for in, want := range map[int64]string{0: "0", 999: "999", 1000: "1,000", 50000: "50,000", 1234567: "1,234,567", -1500: "-1,500"} {
		assert.Equal(t, want, FormatPrice(in))
	}
}

func TestAdminSet(t *testing.T) {
	a := NewAdminSet(3, 1, 3, 2)
	assert.Equal(t, []int64{3, 1, 2}, a.IDs())
	assert.Equal(t, 3, a.Len())
	assert.True(t, a.Contains(1))
	assert.False(t, a.Contains(4))

	ids := a.IDs()
	ids[0] = 99
	assert.Equal(t, int64(3), a.IDs()[0])
}

func TestNoticesEscapeHTML(t *testing.T) {
	o := Order{ID: "ORDER_1", RejectReason: "<b>late</b>"}
	assert.Contains(t, rejectedNotice(o), "&lt;b&gt;late&lt;/b&gt;")

	text := adminNotice(o, Product{ID: "G1", Name: "A&B", Price: 1000}, User{ID: 5}, "<x>")
	assert.Contains(t, text, "A&amp;B")
	assert.Contains(t, text, "&lt;x&gt;")
	assert.Contains(t, text, "Phone: unknown")
	assert.Contains(t, text, "1,000")
}
