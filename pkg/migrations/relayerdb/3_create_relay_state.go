package relayerdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/crosslane/swapbridge/pkg/orderstore/dao"
	mghelper "github.com/crosslane/swapbridge/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating relay_state table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.RelayStateDao{}); err != nil {
			return err
		}
		// Seed the escrow stream cursor so the relayer starts at zero
		// instead of special-casing a missing row.
		return mghelper.InsertEntry(ctx, db, &dao.RelayStateDao{
			StreamID: "escrow",
			Cursor:   0,
		})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping relay_state table...")
		return mghelper.DropTables(ctx, db, &dao.RelayStateDao{})
	})
}
