package orders

import "strconv"

const TopicOrderEvents = "order.events"

// Partition key = order_id, so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

// UserKey partitions per user.
func UserKey(userID int64) []byte { return []byte(strconv.FormatInt(userID, 10)) }
