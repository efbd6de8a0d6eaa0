// internal/service/booking/infrastructure/models.go
package infrastructure

import "time"

// BookingModel 是预订表的 GORM 模型
type BookingModel struct {
	ID          string `gorm:"column:id;primaryKey;size:36"`
	SagaID      string `gorm:"column:saga_id;size:36;uniqueIndex"`
	UserID      string `gorm:"column:user_id;size:64;index"`
	BookingType string `gorm:"column:booking_type;size:16"`
	Status      string `gorm:"column:status;size:32;index"`
	SagaState   string `gorm:"column:saga_state;size:32"`

	ProductDetails []byte `gorm:"column:product_details;type:json"`

	TotalAmount int64  `gorm:"column:total_amount"`
	Currency    string `gorm:"column:currency;size:8"`

	ReservationExpiresAt *time.Time `gorm:"column:reservation_expires_at;index"`
	ConfirmationNumber   string     `gorm:"column:confirmation_number;size:32"`
	CancellationReason   string     `gorm:"column:cancellation_reason;size:512"`
	Notes                string     `gorm:"column:notes;type:text"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (BookingModel) TableName() string { return "bookings" }

// OutboxEventModel 是出箱表的 GORM 模型，只追加不更新（published_at 除外）
type OutboxEventModel struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	AggregateID   string     `gorm:"column:aggregate_id;size:36;index"`
	AggregateType string     `gorm:"column:aggregate_type;size:32"`
	EventType     string     `gorm:"column:event_type;size:64"`
	Payload       []byte     `gorm:"column:payload;type:json"`
	RoutingKey    string     `gorm:"column:routing_key;size:191"`
	Priority      int        `gorm:"column:priority"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	PublishedAt   *time.Time `gorm:"column:published_at;index"`
}

func (OutboxEventModel) TableName() string { return "booking_outbox_events" }
