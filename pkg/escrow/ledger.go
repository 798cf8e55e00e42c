// Package escrow implements the hashed-timelock escrow ledger: orders
// are created atomically with fund locking, claimed by authorized
// resolvers presenting the preimage before expiry, and refunded to the
// sender after expiry. The ledger also owns the event log the relayer
// consumes.
package escrow

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/crosslane/swapbridge/pkg/orderstore"
	"github.com/crosslane/swapbridge/pkg/policy"
	"github.com/crosslane/swapbridge/pkg/swap"
)

// Ledger holds locked value under hashlock/timelock commitments. All
// state transitions happen under a single lock so that no operation is
// ever observable half-applied: order creation and fund locking commit
// together or not at all.
type Ledger struct {
	mu   sync.Mutex
	cond *sync.Cond

	owner        common.Address
	feeCollector common.Address
	limits       policy.Limits
	resolvers    map[common.Address]bool
	balances     map[common.Address]*big.Int

	store  orderstore.Store
	log    []Event
	closed bool
	done   chan struct{}

	now   func() time.Time
	block uint64

	logger *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the ledger clock. Used by tests to walk
// timelock boundaries.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithFeeCollector routes bridge fees to a dedicated account instead
// of the owner.
func WithFeeCollector(collector common.Address) Option {
	return func(l *Ledger) { l.feeCollector = collector }
}

// NewLedger creates an escrow ledger owned by the given administrator.
func NewLedger(owner common.Address, limits policy.Limits, store orderstore.Store, logger *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		owner:        owner,
		feeCollector: owner,
		limits:       limits,
		resolvers:    make(map[common.Address]bool),
		balances:     make(map[common.Address]*big.Int),
		store:        store,
		done:         make(chan struct{}),
		now:          time.Now,
		logger:       logger,
	}
	l.cond = sync.NewCond(&l.mu)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Credit adds funds to an account. Stands in for the value-transfer
// primitive of the underlying chain.
func (l *Ledger) Credit(account common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(account, amount)
}

// BalanceOf returns the spendable balance of an account.
func (l *Ledger) BalanceOf(account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if balance, ok := l.balances[account]; ok {
		return new(big.Int).Set(balance)
	}
	return new(big.Int)
}

// CreateSwap locks value under a hashlock/timelock commitment and
// records the resulting pending order. The bridge fee is deducted up
// front and the fee rate is frozen into the order. Any constraint
// violation rejects with no state change.
func (l *Ledger) CreateSwap(
	ctx context.Context,
	sender common.Address,
	recipientCommitment []byte,
	hashlock common.Hash,
	timelock time.Time,
	value *big.Int,
) (*swap.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if err := policy.ValidateAmount(value, l.limits.MinAmount, l.limits.MaxAmount); err != nil {
		return nil, err
	}
	if err := policy.ValidateTimelock(timelock, now, l.limits.MinTimelockOffset, l.limits.MaxTimelockOffset); err != nil {
		return nil, err
	}
	used, err := l.store.HashlockUsed(ctx, hashlock)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, swap.ErrHashlockUsed
	}
	balance := l.balances[sender]
	if balance == nil || balance.Cmp(value) < 0 {
		return nil, swap.ErrInsufficientBalance
	}

	block := l.block + 1
	net := policy.NetAmount(value, l.limits.FeeBasisPoints)
	fee := policy.Fee(value, l.limits.FeeBasisPoints)

	order := &swap.Order{
		ID:                  swap.ComputeOrderID(sender, recipientCommitment, net, hashlock, timelock, block),
		Sender:              sender,
		RecipientCommitment: append([]byte(nil), recipientCommitment...),
		Amount:              net,
		GrossAmount:         new(big.Int).Set(value),
		Hashlock:            hashlock,
		Timelock:            timelock,
		Status:              swap.StatusPending,
		FeeBasisPoints:      l.limits.FeeBasisPoints,
		CreationBlock:       block,
		CreatedAt:           now,
	}

	if err := l.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	// Point of no return: the order is recorded, move the funds.
	l.block = block
	balance.Sub(balance, value)
	l.credit(l.feeCollector, fee)

	l.emit(Event{
		Type:                EventOrderCreated,
		OrderID:             order.ID,
		Sender:              sender,
		RecipientCommitment: order.RecipientCommitment,
		Amount:              new(big.Int).Set(net),
		Hashlock:            hashlock,
		Timelock:            timelock,
		FeeBasisPoints:      order.FeeBasisPoints,
		Block:               block,
	})

	l.logger.Info("Swap created",
		zap.String("order_id", order.ID),
		zap.String("sender", sender.Hex()),
		zap.String("amount", net.String()),
		zap.Time("timelock", timelock))

	return order, nil
}

// ClaimSwap transfers the locked amount to an authorized resolver that
// presents the matching preimage before the timelock elapses.
func (l *Ledger) ClaimSwap(ctx context.Context, resolver common.Address, orderID string, preimage []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.resolvers[resolver] {
		return swap.ErrNotAuthorized
	}
	order, err := l.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != swap.StatusPending {
		return swap.ErrAlreadyResolved
	}
	now := l.now()
	if !now.Before(order.Timelock) {
		return swap.ErrTimelockExpired
	}
	if swap.HashPreimage(preimage) != order.Hashlock {
		return swap.ErrInvalidPreimage
	}

	if err := l.store.MarkCompleted(ctx, orderID, resolver, preimage, now); err != nil {
		return err
	}

	l.block++
	l.credit(resolver, order.Amount)

	l.emit(Event{
		Type:     EventOrderCompleted,
		OrderID:  orderID,
		Hashlock: order.Hashlock,
		Preimage: append([]byte(nil), preimage...),
		Block:    l.block,
	})

	l.logger.Info("Swap claimed",
		zap.String("order_id", orderID),
		zap.String("resolver", resolver.Hex()),
		zap.String("amount", order.Amount.String()))

	return nil
}

// Refund returns the locked amount to the original sender once the
// timelock has elapsed. Strictly post-expiry, so a sender can never
// front-run an in-flight resolution.
func (l *Ledger) Refund(ctx context.Context, caller common.Address, orderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, err := l.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if caller != order.Sender {
		return swap.ErrNotAuthorized
	}
	if order.Status != swap.StatusPending {
		return swap.ErrAlreadyResolved
	}
	now := l.now()
	if now.Before(order.Timelock) {
		return swap.ErrTimelockNotExpired
	}

	if err := l.store.MarkRefunded(ctx, orderID, now); err != nil {
		return err
	}

	l.block++
	l.credit(order.Sender, order.Amount)

	l.emit(Event{
		Type:    EventOrderRefunded,
		OrderID: orderID,
		Block:   l.block,
	})

	l.logger.Info("Swap refunded",
		zap.String("order_id", orderID),
		zap.String("sender", order.Sender.Hex()))

	return nil
}

// SetFeeBasisPoints updates the bridge fee rate for future orders.
func (l *Ledger) SetFeeBasisPoints(caller common.Address, feeBps uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.owner {
		return swap.ErrNotAuthorized
	}
	l.limits.FeeBasisPoints = feeBps
	return nil
}

// SetAmountBounds updates the lock amount bounds for future orders.
func (l *Ledger) SetAmountBounds(caller common.Address, min, max *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.owner {
		return swap.ErrNotAuthorized
	}
	l.limits.MinAmount = new(big.Int).Set(min)
	l.limits.MaxAmount = new(big.Int).Set(max)
	return nil
}

// SetTimelockBounds updates the timelock offset window for future orders.
func (l *Ledger) SetTimelockBounds(caller common.Address, minOffset, maxOffset time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.owner {
		return swap.ErrNotAuthorized
	}
	l.limits.MinTimelockOffset = minOffset
	l.limits.MaxTimelockOffset = maxOffset
	return nil
}

// SetResolverAuthorization grants or revokes a resolver's right to
// complete swaps. Checked on every claim.
func (l *Ledger) SetResolverAuthorization(caller, resolver common.Address, authorized bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.owner {
		return swap.ErrNotAuthorized
	}
	if authorized {
		l.resolvers[resolver] = true
	} else {
		delete(l.resolvers, resolver)
	}
	return nil
}

// IsAuthorizedResolver reports whether the address may complete swaps.
func (l *Ledger) IsAuthorizedResolver(resolver common.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolvers[resolver]
}

// LatestSeq returns the sequence number of the newest event, zero when
// the log is empty.
func (l *Ledger) LatestSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.log))
}

// StreamEvents replays events with sequence greater than fromSeq and
// then follows the live log until ctx is cancelled or the ledger is
// closed. Events arrive in emission order.
func (l *Ledger) StreamEvents(ctx context.Context, fromSeq uint64) (<-chan Event, <-chan error) {
	events := make(chan Event)
	errs := make(chan error, 1)

	// Wake the streamer when the context is cancelled or the ledger is
	// closed, since cond.Wait cannot observe either on its own.
	go func() {
		select {
		case <-ctx.Done():
		case <-l.done:
		}
		l.mu.Lock()
		l.cond.Broadcast()
		l.mu.Unlock()
	}()

	go func() {
		defer close(events)
		defer close(errs)

		next := fromSeq
		for {
			l.mu.Lock()
			for uint64(len(l.log)) <= next && !l.closed && ctx.Err() == nil {
				l.cond.Wait()
			}
			if ctx.Err() != nil {
				l.mu.Unlock()
				return
			}
			if uint64(len(l.log)) <= next && l.closed {
				l.mu.Unlock()
				return
			}
			batch := make([]Event, uint64(len(l.log))-next)
			copy(batch, l.log[next:])
			l.mu.Unlock()

			for _, ev := range batch {
				select {
				case events <- ev:
					next = ev.Seq
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, errs
}

// Close stops all event streams after they drain the log. Safe to
// call more than once.
func (l *Ledger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.done)
	l.cond.Broadcast()
}

// credit must be called with l.mu held.
func (l *Ledger) credit(account common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	balance, ok := l.balances[account]
	if !ok {
		balance = new(big.Int)
		l.balances[account] = balance
	}
	balance.Add(balance, amount)
}

// emit must be called with l.mu held.
func (l *Ledger) emit(ev Event) {
	ev.Seq = uint64(len(l.log)) + 1
	ev.EmittedAt = l.now()
	l.log = append(l.log, ev)
	l.cond.Broadcast()
}
