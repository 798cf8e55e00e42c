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
		log.Println("creating deliveries table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.DeliveryDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.DeliveryDao{}, "status")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping deliveries table...")
		return mghelper.DropTables(ctx, db, &dao.DeliveryDao{})
	})
}
