package relayer

import (
	"context"

	"github.com/crosslane/swapbridge/pkg/escrow"
	"github.com/crosslane/swapbridge/pkg/target"
)

// MockEventStream is a mock implementation of EventStream
type MockEventStream struct {
	StreamEventsFunc func(ctx context.Context, fromSeq uint64) (<-chan escrow.Event, <-chan error)
	LatestSeqFunc    func() uint64
}

func (m *MockEventStream) StreamEvents(ctx context.Context, fromSeq uint64) (<-chan escrow.Event, <-chan error) {
	if m.StreamEventsFunc != nil {
		return m.StreamEventsFunc(ctx, fromSeq)
	}
	events := make(chan escrow.Event)
	errs := make(chan error, 1)
	go func() {
		<-ctx.Done()
		close(events)
		close(errs)
	}()
	return events, errs
}

func (m *MockEventStream) LatestSeq() uint64 {
	if m.LatestSeqFunc != nil {
		return m.LatestSeqFunc()
	}
	return 0
}

// MockTargetClient is a mock implementation of target.Client
type MockTargetClient struct {
	SubmitFunc func(ctx context.Context, sub target.Submission) (*target.Receipt, error)
}

func (m *MockTargetClient) Submit(ctx context.Context, sub target.Submission) (*target.Receipt, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, sub)
	}
	return &target.Receipt{CommandID: sub.CommandID, TxHash: "0xmock"}, nil
}
