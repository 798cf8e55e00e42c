package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderDao maps directly to the 'orders' table in PostgreSQL.
type OrderDao struct {
	bun.BaseModel `bun:"table:orders"`

	ID                  string     `json:"id" bun:"id,pk,type:VARCHAR(66)"`
	Sender              string     `json:"sender" bun:"sender,notnull,type:VARCHAR(42)"`
	RecipientCommitment string     `json:"recipient_commitment" bun:"recipient_commitment,notnull,type:TEXT"`
	Amount              string     `json:"amount" bun:"amount,notnull,type:NUMERIC(78,0)"`
	GrossAmount         string     `json:"gross_amount" bun:"gross_amount,notnull,type:NUMERIC(78,0)"`
	Hashlock            string     `json:"hashlock" bun:"hashlock,notnull,unique,type:VARCHAR(66)"`
	Timelock            int64      `json:"timelock" bun:"timelock,notnull"`
	Status              string     `json:"status" bun:"status,notnull,type:VARCHAR(16)"`
	FeeBasisPoints      int64      `json:"fee_basis_points" bun:"fee_basis_points,notnull"`
	CreationBlock       int64      `json:"creation_block" bun:"creation_block,notnull"`
	CreatedAt           time.Time  `json:"created_at" bun:"created_at,nullzero,notnull,default:now()"`
	ResolvedAt          *time.Time `json:"resolved_at,omitempty" bun:"resolved_at"`
	Resolver            *string    `json:"resolver,omitempty" bun:"resolver,type:VARCHAR(42)"`
	Preimage            *string    `json:"preimage,omitempty" bun:"preimage,type:VARCHAR(130)"`
}
