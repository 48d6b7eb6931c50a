package enums

// OutboxStatus tracks the lifecycle of a transactional outbox row.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxEventType names domain events emitted through the outbox.
type OutboxEventType string

const (
	EventOrderCreated OutboxEventType = "order.created"
	EventCartMerged   OutboxEventType = "cart.merged"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
	AggregateCart  OutboxAggregateType = "cart"
)
