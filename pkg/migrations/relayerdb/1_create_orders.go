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
		log.Println("creating orders table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.OrderDao{}); err != nil {
			return err
		}
		// Hashlock uniqueness is enforced at the schema level; these
		// indexes serve the list and stats queries.
		return mghelper.CreateModelIndexes(ctx, db, &dao.OrderDao{}, "status", "sender", "timelock")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping orders table...")
		return mghelper.DropTables(ctx, db, &dao.OrderDao{})
	})
}
