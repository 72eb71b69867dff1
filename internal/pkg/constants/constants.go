package constants

// 服务名，同时用作 Nacos 注册名与 httpclient 的解析键。
const (
	InventoryService    = "inventory-service"
	OrderService        = "order-service"
	NotificationService = "notification-service"
)

// Kafka topic 与消费组
const (
	OrderEventsTopic          = "order-events"
	OrderEventsDLTTopic       = "order-events.dlt"
	NotificationConsumerGroup = "notification-service-group"
	DLTConsumerGroup          = "notification-service-dlt-group"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

const EntityTypeOrder = "ORDER"
