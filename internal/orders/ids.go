package orders

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	ProductPrefix = "G"
	OrderPrefix   = "ORDER_"
)

// Sequence names the counters the Store allocates ids from.
type Sequence string

const (
	SeqProduct Sequence = "product"
	SeqOrder   Sequence = "order"
)

func ProductID(seq int64) string { return fmt.Sprintf("%s%d", ProductPrefix, seq) }
func OrderID(seq int64) string   { return fmt.Sprintf("%s%d", OrderPrefix, seq) }

// ParseProductID accepts "G" followed by one or more digits.
func ParseProductID(s string) (int64, bool) {
	return parseSeq(s, ProductPrefix)
}

func ParseOrderID(s string) (int64, bool) {
	return parseSeq(s, OrderPrefix)
}

// IsProductToken reports whether free text should be treated as a catalog
// lookup.
func IsProductToken(text string) bool {
	_, ok := ParseProductID(strings.TrimSpace(text))
	return ok
}

func parseSeq(s, prefix string) (int64, bool) {
	rest, ok := strings.CutPrefix(s, prefix)
	if !ok || rest == "" {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
