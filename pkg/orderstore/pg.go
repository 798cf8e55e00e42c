package orderstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/crosslane/swapbridge/pkg/orderstore/dao"
	"github.com/crosslane/swapbridge/pkg/swap"
)

const relayStreamID = "escrow"

// PG is the PostgreSQL-backed Store and DeliveryStore.
type PG struct {
	db *bun.DB
}

// NewPG wraps an existing bun connection.
func NewPG(db *bun.DB) *PG {
	return &PG{db: db}
}

// Close closes the underlying database connection.
func (s *PG) Close() error {
	return s.db.Close()
}

func (s *PG) CreateOrder(ctx context.Context, order *swap.Order) error {
	row := orderToDao(order)
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if strings.Contains(constraint, "hashlock") {
				return swap.ErrHashlockUsed
			}
			return swap.ErrStateConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// uniqueViolation reports whether err is a Postgres unique-constraint
// violation and names the violated constraint.
func uniqueViolation(err error) (string, bool) {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == "23505" {
		return pgErr.Field('n'), true
	}
	return "", false
}

func (s *PG) GetOrder(ctx context.Context, id string) (*swap.Order, error) {
	row := new(dao.OrderDao)
	err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, swap.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select order: %w", err)
	}
	return daoToOrder(row)
}

func (s *PG) HashlockUsed(ctx context.Context, hashlock common.Hash) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*dao.OrderDao)(nil)).
		Where("hashlock = ?", hashlock.Hex()).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check hashlock: %w", err)
	}
	return exists, nil
}

func (s *PG) MarkCompleted(ctx context.Context, id string, resolver common.Address, preimage []byte, at time.Time) error {
	resolverHex := resolver.Hex()
	preimageHex := hexutil.Encode(preimage)
	res, err := s.db.NewUpdate().
		Model((*dao.OrderDao)(nil)).
		Set("status = ?", string(swap.StatusCompleted)).
		Set("resolver = ?", resolverHex).
		Set("preimage = ?", preimageHex).
		Set("resolved_at = ?", at).
		Where("id = ? AND status = ?", id, string(swap.StatusPending)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return s.checkTransition(ctx, res, id)
}

func (s *PG) MarkRefunded(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*dao.OrderDao)(nil)).
		Set("status = ?", string(swap.StatusRefunded)).
		Set("resolved_at = ?", at).
		Where("id = ? AND status = ?", id, string(swap.StatusPending)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark refunded: %w", err)
	}
	return s.checkTransition(ctx, res, id)
}

// checkTransition distinguishes a missing order from a stale
// transition when the guarded update matched no rows.
func (s *PG) checkTransition(ctx context.Context, res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	exists, err := s.db.NewSelect().
		Model((*dao.OrderDao)(nil)).
		Where("id = ?", id).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("check order exists: %w", err)
	}
	if !exists {
		return swap.ErrOrderNotFound
	}
	return swap.ErrStateConflict
}

func (s *PG) ListOrders(ctx context.Context, limit int) ([]*swap.Order, error) {
	var rows []*dao.OrderDao
	err := s.db.NewSelect().
		Model(&rows).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders := make([]*swap.Order, 0, len(rows))
	for _, row := range rows {
		order, err := daoToOrder(row)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (s *PG) Stats(ctx context.Context) (swap.Stats, error) {
	var counts []struct {
		Status string `bun:"status"`
		Count  int64  `bun:"count"`
	}
	err := s.db.NewSelect().
		Model((*dao.OrderDao)(nil)).
		ColumnExpr("status, COUNT(*) AS count").
		Group("status").
		Scan(ctx, &counts)
	if err != nil {
		return swap.Stats{}, fmt.Errorf("order stats: %w", err)
	}

	var stats swap.Stats
	for _, c := range counts {
		stats.Total += c.Count
		switch swap.OrderStatus(c.Status) {
		case swap.StatusCompleted:
			stats.Completed += c.Count
		case swap.StatusRefunded:
			stats.Cancelled += c.Count
		default:
			stats.Pending += c.Count
		}
	}
	return stats, nil
}

func (s *PG) GetDelivery(ctx context.Context, orderID string) (*Delivery, error) {
	row := new(dao.DeliveryDao)
	err := s.db.NewSelect().Model(row).Where("order_id = ?", orderID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select delivery: %w", err)
	}
	return &Delivery{
		OrderID:      row.OrderID,
		Status:       DeliveryStatus(row.Status),
		Attempts:     row.Attempts,
		Receipt:      row.Receipt,
		ErrorMessage: row.ErrorMessage,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

func (s *PG) CreateDelivery(ctx context.Context, delivery *Delivery) error {
	row := &dao.DeliveryDao{
		OrderID:      delivery.OrderID,
		Status:       string(delivery.Status),
		Attempts:     delivery.Attempts,
		Receipt:      delivery.Receipt,
		ErrorMessage: delivery.ErrorMessage,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if _, ok := uniqueViolation(err); ok {
			return swap.ErrStateConflict
		}
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

func (s *PG) UpdateDelivery(ctx context.Context, orderID string, status DeliveryStatus, receipt *string, attempts int, errMsg *string) error {
	_, err := s.db.NewUpdate().
		Model((*dao.DeliveryDao)(nil)).
		Set("status = ?", string(status)).
		Set("receipt = ?", receipt).
		Set("attempts = ?", attempts).
		Set("error_message = ?", errMsg).
		Set("updated_at = now()").
		Where("order_id = ?", orderID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	return nil
}

func (s *PG) ListPendingDeliveries(ctx context.Context, updatedBefore time.Time) ([]*Delivery, error) {
	var rows []*dao.DeliveryDao
	err := s.db.NewSelect().
		Model(&rows).
		Where("status = ?", string(DeliveryStatusPending)).
		Where("updated_at < ?", updatedBefore).
		Order("updated_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending deliveries: %w", err)
	}
	deliveries := make([]*Delivery, 0, len(rows))
	for _, row := range rows {
		deliveries = append(deliveries, &Delivery{
			OrderID:      row.OrderID,
			Status:       DeliveryStatus(row.Status),
			Attempts:     row.Attempts,
			Receipt:      row.Receipt,
			ErrorMessage: row.ErrorMessage,
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
		})
	}
	return deliveries, nil
}

func (s *PG) GetRelayCursor(ctx context.Context) (uint64, error) {
	row := new(dao.RelayStateDao)
	err := s.db.NewSelect().Model(row).Where("stream_id = ?", relayStreamID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select relay cursor: %w", err)
	}
	return uint64(row.Cursor), nil
}

func (s *PG) SetRelayCursor(ctx context.Context, seq uint64) error {
	row := &dao.RelayStateDao{StreamID: relayStreamID, Cursor: int64(seq)}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (stream_id) DO UPDATE").
		Set("cursor = GREATEST(relay_state.cursor, EXCLUDED.cursor)").
		Set("updated_at = now()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set relay cursor: %w", err)
	}
	return nil
}

func orderToDao(order *swap.Order) *dao.OrderDao {
	row := &dao.OrderDao{
		ID:                  order.ID,
		Sender:              order.Sender.Hex(),
		RecipientCommitment: hexutil.Encode(order.RecipientCommitment),
		Amount:              order.Amount.String(),
		GrossAmount:         order.GrossAmount.String(),
		Hashlock:            order.Hashlock.Hex(),
		Timelock:            order.Timelock.Unix(),
		Status:              string(order.Status),
		FeeBasisPoints:      int64(order.FeeBasisPoints),
		CreationBlock:       int64(order.CreationBlock),
		CreatedAt:           order.CreatedAt,
		ResolvedAt:          order.ResolvedAt,
	}
	if order.Resolver != nil {
		resolver := order.Resolver.Hex()
		row.Resolver = &resolver
	}
	if len(order.Preimage) > 0 {
		preimage := hexutil.Encode(order.Preimage)
		row.Preimage = &preimage
	}
	return row
}

func daoToOrder(row *dao.OrderDao) (*swap.Order, error) {
	amount, ok := new(big.Int).SetString(row.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q for order %s", row.Amount, row.ID)
	}
	gross, ok := new(big.Int).SetString(row.GrossAmount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid gross amount %q for order %s", row.GrossAmount, row.ID)
	}
	commitment, err := hexutil.Decode(row.RecipientCommitment)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient commitment for order %s: %w", row.ID, err)
	}

	order := &swap.Order{
		ID:                  row.ID,
		Sender:              common.HexToAddress(row.Sender),
		RecipientCommitment: commitment,
		Amount:              amount,
		GrossAmount:         gross,
		Hashlock:            common.HexToHash(row.Hashlock),
		Timelock:            time.Unix(row.Timelock, 0).UTC(),
		Status:              swap.OrderStatus(row.Status),
		FeeBasisPoints:      uint32(row.FeeBasisPoints),
		CreationBlock:       uint64(row.CreationBlock),
		CreatedAt:           row.CreatedAt,
		ResolvedAt:          row.ResolvedAt,
	}
	if row.Resolver != nil {
		resolver := common.HexToAddress(*row.Resolver)
		order.Resolver = &resolver
	}
	if row.Preimage != nil {
		preimage, err := hexutil.Decode(*row.Preimage)
		if err != nil {
			return nil, fmt.Errorf("invalid preimage for order %s: %w", row.ID, err)
		}
		order.Preimage = preimage
	}
	return order, nil
}
