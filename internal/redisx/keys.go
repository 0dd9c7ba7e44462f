package redisx

import "time"

const (
	// Dedup inbound update processing: dedup:{service}:{update_id}
	KeyDedup = "dedup:%s:%s"

	// Positive membership result: member:{channel}:{user_id} -> "1"
	KeyMember = "member:%s:%d"
)

var (
	TTLDedup  = 48 * time.Hour
	TTLMember = 5 * time.Minute
)
