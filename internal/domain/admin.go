package domain

// ConsumerGroupInfo describes one consumer group of an event stream.
type ConsumerGroupInfo struct {
	Name            string `json:"name"`
	Consumers       int64  `json:"consumers"`
	Pending         int64  `json:"pending"`
	LastDeliveredID string `json:"lastDeliveredId"`
	// Lag counts events added to the stream but not yet delivered to the group.
	Lag             int64  `json:"lag"`
}

// ConsumerInfo describes one consumer of a group.
type ConsumerInfo struct {
	Name    string `json:"name"`
	Pending int64  `json:"pending"`
	IdleMs  int64  `json:"idleMs"`
}

// PendingMessageSummary counts events delivered to a group but not yet acknowledged.
type PendingMessageSummary struct {
	Total          int64            `json:"total"`
	FirstMessageID string           `json:"firstMessageId,omitempty"`
	LastMessageID  string           `json:"lastMessageId,omitempty"`
	ConsumerTotals map[string]int64 `json:"consumerTotals,omitempty"`
}

// PendingQuery selects unacknowledged deliveries. Empty Consumer and ScopeID
// match everything; Count bounds the deliveries scanned before the scope
// filter applies.
type PendingQuery struct {
	Consumer string
	ScopeID  string
	StartID  string
	Count    int64
}

// PendingMessageDetail is one unacknowledged delivery, with the identity of
// the event it carries. Trimmed is set when the stream entry no longer exists.
type PendingMessageDetail struct {
	ID         string     `json:"id"`
	Consumer   string     `json:"consumer"`
	IdleMs     int64      `json:"idleMs"`
	Deliveries int64      `json:"deliveries"`
	ScopeID    string     `json:"scopeId,omitempty"`
	Entity     EntityType `json:"entity,omitempty"`
	EntityID   string     `json:"entityId,omitempty"`
	Sequence   int64      `json:"sequence,omitempty"`
	Trimmed    bool       `json:"trimmed,omitempty"`
}

