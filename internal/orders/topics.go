package orders

const (
	TopicOrderPlaced        = "order.placed"
	TopicOrderStatusChanged = "order.status.changed"
	TopicOrderCancelled     = "order.cancelled"
	TopicOrderPaymentMarked = "order.payment.marked"
)

// TopicFor maps an event type to its topic.
func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderPlaced:
		return TopicOrderPlaced
	case EventOrderStatusChanged:
		return TopicOrderStatusChanged
	case EventOrderCancelled:
		return TopicOrderCancelled
	case EventOrderPaymentMarked:
		return TopicOrderPaymentMarked
	}
	return ""
}

// AllTopics lists every order topic.
func AllTopics() []string {
	return []string{TopicOrderPlaced, TopicOrderStatusChanged, TopicOrderCancelled, TopicOrderPaymentMarked}
}

// Partition key = order_id, so all events of one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
