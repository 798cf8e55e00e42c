package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// DeliveryDao maps directly to the 'deliveries' table in PostgreSQL.
type DeliveryDao struct {
	bun.BaseModel `bun:"table:deliveries"`

	OrderID      string    `json:"order_id" bun:"order_id,pk,type:VARCHAR(66)"`
	Status       string    `json:"status" bun:"status,notnull,type:VARCHAR(16)"`
	Attempts     int       `json:"attempts" bun:"attempts,notnull,default:0"`
	Receipt      *string   `json:"receipt,omitempty" bun:"receipt,type:TEXT"`
	ErrorMessage *string   `json:"error_message,omitempty" bun:"error_message,type:TEXT"`
	CreatedAt    time.Time `json:"created_at" bun:"created_at,nullzero,notnull,default:now()"`
	UpdatedAt    time.Time `json:"updated_at" bun:"updated_at,nullzero,notnull,default:now()"`
}

// RelayStateDao maps to the 'relay_state' table, tracking the last
// escrow event sequence processed by the relayer.
type RelayStateDao struct {
	bun.BaseModel `bun:"table:relay_state"`

	StreamID  string    `json:"stream_id" bun:"stream_id,pk,type:VARCHAR(32)"`
	Cursor    int64     `json:"cursor" bun:"cursor,notnull,default:0"`
	UpdatedAt time.Time `json:"updated_at" bun:"updated_at,nullzero,notnull,default:now()"`
}
