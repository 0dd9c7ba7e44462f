package orders

import "time"

type User struct {
	ID           int64     `json:"id"`
	DisplayName  string    `json:"display_name"`
	Handle       string    `json:"handle,omitempty"`
	Phone        string    `json:"phone"`
	RegisteredAt time.Time `json:"registered_at"`
	OrdersCount  int       `json:"orders_count"`
}

type Product struct {
	ID          string    `json:"id"`
	Seq         int64     `json:"seq"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"` // smallest currency unit
	Description string    `json:"description"`
	PhotoRef    string    `json:"photo_ref"`
	CreatedAt   time.Time `json:"created_at"`
}

type Order struct {
	ID           string     `json:"id"`
	Seq          int64      `json:"seq"`
	ExternalID   string     `json:"external_id,omitempty"` // confirmation token
	UserID       int64      `json:"user_id"`
	ProductID    string     `json:"product_id"`
	Status       Status     `json:"status"`
	RejectReason string     `json:"reject_reason,omitempty"`
	DecidedBy    int64      `json:"decided_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
}

// ProductCount is one histogram bucket. Buckets are kept in the order the
// product received its first order.
type ProductCount struct {
	ProductID string `json:"product_id"`
	Count     int64  `json:"count"`
}

type Stats struct {
	Total    int64          `json:"total"`
	Accepted int64          `json:"accepted"`
	Rejected int64          `json:"rejected"`
	Products []ProductCount `json:"products"`
}

func (s Stats) Pending() int64 {
	return s.Total - s.Accepted - s.Rejected
}

func (s Stats) Count(productID string) int64 {
	for _, pc := range s.Products {
		if pc.ProductID == productID {
			return pc.Count
		}
	}
	return 0
}

// Bump records one more order for productID.
func (s *Stats) Bump(productID string) {
	s.Total++
	for i := range s.Products {
		if s.Products[i].ProductID == productID {
			s.Products[i].Count++
			return
		}
	}
	s.Products = append(s.Products, ProductCount{ProductID: productID, Count: 1})
}

// Clone returns a copy that shares no slice memory with s.
func (s Stats) Clone() Stats {
	out := s
	out.Products = append([]ProductCount(nil), s.Products...)
	return out
}

// ProductDraft is the staged input of the admin add-product flow.
type ProductDraft struct {
	PhotoRef    string `validate:"required"`
	Name        string `validate:"required,max=256"`
	Price       int64  `validate:"gte=0"`
	Description string `validate:"max=4096"`
}
