package orders

// AdminSet is the static set of administrator ids, in configuration order.
type AdminSet struct {
	ids []int64
	set map[int64]bool
}

func NewAdminSet(ids ...int64) AdminSet {
	a := AdminSet{set: make(map[int64]bool, len(ids))}
	for _, id := range ids {
		if a.set[id] {
			continue
		}
		a.set[id] = true
		a.ids = append(a.ids, id)
	}
	return a
}

func (a AdminSet) Contains(id int64) bool { return a.set[id] }

func (a AdminSet) IDs() []int64 { return append([]int64(nil), a.ids...) }

func (a AdminSet) Len() int { return len(a.ids) }
