package orderstore

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/crosslane/swapbridge/pkg/swap"
)

// Memory is an in-memory Store and DeliveryStore used by tests and
// single-process deployments.
type Memory struct {
	mu         sync.RWMutex
	orders     map[string]*swap.Order
	hashlocks  map[common.Hash]struct{}
	deliveries map[string]*Delivery
	cursor     uint64
	seq        int64
	createdSeq map[string]int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		orders:     make(map[string]*swap.Order),
		hashlocks:  make(map[common.Hash]struct{}),
		deliveries: make(map[string]*Delivery),
		createdSeq: make(map[string]int64),
	}
}

func (m *Memory) CreateOrder(_ context.Context, order *swap.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[order.ID]; ok {
		return swap.ErrStateConflict
	}
	if _, ok := m.hashlocks[order.Hashlock]; ok {
		return swap.ErrHashlockUsed
	}
	m.orders[order.ID] = cloneOrder(order)
	m.hashlocks[order.Hashlock] = struct{}{}
	m.seq++
	m.createdSeq[order.ID] = m.seq
	return nil
}

func (m *Memory) GetOrder(_ context.Context, id string) (*swap.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, ok := m.orders[id]
	if !ok {
		return nil, swap.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (m *Memory) HashlockUsed(_ context.Context, hashlock common.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.hashlocks[hashlock]
	return ok, nil
}

func (m *Memory) MarkCompleted(_ context.Context, id string, resolver common.Address, preimage []byte, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return swap.ErrOrderNotFound
	}
	if order.Status != swap.StatusPending {
		return swap.ErrStateConflict
	}
	order.Status = swap.StatusCompleted
	order.Resolver = &resolver
	order.Preimage = append([]byte(nil), preimage...)
	resolvedAt := at
	order.ResolvedAt = &resolvedAt
	return nil
}

func (m *Memory) MarkRefunded(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return swap.ErrOrderNotFound
	}
	if order.Status != swap.StatusPending {
		return swap.ErrStateConflict
	}
	order.Status = swap.StatusRefunded
	resolvedAt := at
	order.ResolvedAt = &resolvedAt
	return nil
}

func (m *Memory) ListOrders(_ context.Context, limit int) ([]*swap.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders := make([]*swap.Order, 0, len(m.orders))
	for _, order := range m.orders {
		orders = append(orders, cloneOrder(order))
	}
	sort.Slice(orders, func(i, j int) bool {
		return m.createdSeq[orders[i].ID] > m.createdSeq[orders[j].ID]
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (m *Memory) Stats(_ context.Context) (swap.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats swap.Stats
	for _, order := range m.orders {
		stats.Total++
		switch order.Status {
		case swap.StatusCompleted:
			stats.Completed++
		case swap.StatusRefunded:
			stats.Cancelled++
		default:
			stats.Pending++
		}
	}
	return stats, nil
}

func (m *Memory) GetDelivery(_ context.Context, orderID string) (*Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	delivery, ok := m.deliveries[orderID]
	if !ok {
		return nil, nil
	}
	clone := *delivery
	return &clone, nil
}

func (m *Memory) CreateDelivery(_ context.Context, delivery *Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.deliveries[delivery.OrderID]; ok {
		return swap.ErrStateConflict
	}
	clone := *delivery
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	clone.UpdatedAt = clone.CreatedAt
	m.deliveries[delivery.OrderID] = &clone
	return nil
}

func (m *Memory) UpdateDelivery(_ context.Context, orderID string, status DeliveryStatus, receipt *string, attempts int, errMsg *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delivery, ok := m.deliveries[orderID]
	if !ok {
		return swap.ErrOrderNotFound
	}
	delivery.Status = status
	delivery.Receipt = receipt
	delivery.Attempts = attempts
	delivery.ErrorMessage = errMsg
	delivery.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) ListPendingDeliveries(_ context.Context, updatedBefore time.Time) ([]*Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stale []*Delivery
	for _, delivery := range m.deliveries {
		if delivery.Status != DeliveryStatusPending || !delivery.UpdatedAt.Before(updatedBefore) {
			continue
		}
		clone := *delivery
		stale = append(stale, &clone)
	}
	return stale, nil
}

func (m *Memory) GetRelayCursor(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursor, nil
}

func (m *Memory) SetRelayCursor(_ context.Context, seq uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq > m.cursor {
		m.cursor = seq
	}
	return nil
}

func cloneOrder(order *swap.Order) *swap.Order {
	clone := *order
	if order.Amount != nil {
		clone.Amount = new(big.Int).Set(order.Amount)
	}
	if order.GrossAmount != nil {
		clone.GrossAmount = new(big.Int).Set(order.GrossAmount)
	}
	clone.RecipientCommitment = append([]byte(nil), order.RecipientCommitment...)
	clone.Preimage = append([]byte(nil), order.Preimage...)
	if order.ResolvedAt != nil {
		at := *order.ResolvedAt
		clone.ResolvedAt = &at
	}
	if order.Resolver != nil {
		resolver := *order.Resolver
		clone.Resolver = &resolver
	}
	return &clone
}
