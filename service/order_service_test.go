package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"keel/domain/book"
	"keel/infra/outbox"
	"keel/infra/sequence"
)

type captureDepth struct {
	frames [][]byte
}

func (c *captureDepth) Send(_ context.Context, _, value []byte) error {
	c.frames = append(c.frames, value)
	return nil
}

func newTestService(t *testing.T) (*OrderService, *outbox.Outbox, *captureDepth) {
	t.Helper()
	ledger, err := outbox.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	depth := &captureDepth{}
	svc := New(book.New("KEL-USD", 50), sequence.New(0), ledger, depth, zap.NewNop())
	return svc, ledger, depth
}

func TestPlaceOrderFansOutTrades(t *testing.T) {
	svc, ledger, depth := newTestService(t)

	require.True(t, svc.PlaceOrder(book.Order{ID: 1, Side: book.Sell, Type: book.Limit, TIF: book.Day, Px: 10100, Qty: 10, TsNs: 1}))
	require.True(t, svc.PlaceOrder(book.Order{ID: 2, Side: book.Buy, Type: book.Limit, TIF: book.Day, Px: 10100, Qty: 4, TsNs: 2}))

	recent := svc.RecentTrades(10)
	require.Len(t, recent, 1)
	assert.EqualValues(t, 1, recent[0].Seq)
	assert.Equal(t, uint64(2), recent[0].TakerID)
	assert.Equal(t, uint64(1), recent[0].MakerID)
	assert.EqualValues(t, 10100, recent[0].Px)
	assert.EqualValues(t, 4, recent[0].Qty)
	assert.True(t, recent[0].TakerIsBuy)

	// The fill was ledgered as NEW for the broadcaster.
	rec, err := ledger.Get(1)
	require.NoError(t, err)
	assert.Equal(t, outbox.StateNew, rec.State)
	assert.Contains(t, string(rec.Payload), `"type":"trade"`)

	// Depth frames were published on each accepted call.
	assert.Len(t, depth.frames, 2)

	// In-process stream got the event too.
	select {
	case ev := <-svc.TradeEvents():
		assert.EqualValues(t, 1, ev.Seq)
	default:
		t.Fatal("expected a trade event on the stream")
	}
}

func TestRejectionPublishesNothing(t *testing.T) {
	svc, _, depth := newTestService(t)

	assert.False(t, svc.PlaceOrder(book.Order{ID: 1, Side: book.Buy, Type: book.Limit, Px: 10025, Qty: 10, TsNs: 1}))
	assert.Empty(t, depth.frames)
	assert.Empty(t, svc.RecentTrades(10))
}

func TestCancelAndReplaceThroughService(t *testing.T) {
	svc, _, _ := newTestService(t)

	require.True(t, svc.PlaceOrder(book.Order{ID: 1, Side: book.Buy, Type: book.Limit, TIF: book.Day, Px: 10000, Qty: 10, TsNs: 1}))
	require.True(t, svc.ReplaceOrder(1, 10000, 5, 2))

	bids, asks := svc.Depth(5)
	require.Len(t, bids, 1)
	assert.Equal(t, book.LevelView{Px: 10000, Qty: 5, Orders: 1}, bids[0])
	assert.Empty(t, asks)

	require.True(t, svc.CancelOrder(1, 3))
	assert.False(t, svc.CancelOrder(1, 4))

	bids, _ = svc.Depth(5)
	assert.Empty(t, bids)
}

func TestTradeSequenceMonotonic(t *testing.T) {
	svc, _, _ := newTestService(t)

	for i := 0; i < 5; i++ {
		id := uint64(i)*2 + 1
		require.True(t, svc.PlaceOrder(book.Order{ID: id, Side: book.Sell, Type: book.Limit, TIF: book.Day, Px: 10100, Qty: 5, TsNs: int64(i)}))
		require.True(t, svc.PlaceOrder(book.Order{ID: id + 1, Side: book.Buy, Type: book.Limit, TIF: book.Day, Px: 10100, Qty: 5, TsNs: int64(i)}))
	}

	recent := svc.RecentTrades(0)
	require.Len(t, recent, 5)
	for i := 1; i < len(recent); i++ {
		assert.Equal(t, recent[i].Seq+1, recent[i-1].Seq, "newest first, strictly monotonic")
	}
}

func TestResumeSeq(t *testing.T) {
	ledger, err := outbox.Open(t.TempDir())
	require.NoError(t, err)
	defer ledger.Close()

	seq, err := ResumeSeq(ledger)
	require.NoError(t, err)
	assert.EqualValues(t, 1, seq.Next(), "fresh ledger starts at 1")

	require.NoError(t, ledger.Append(41, []byte("x")))
	seq, err = ResumeSeq(ledger)
	require.NoError(t, err)
	assert.EqualValues(t, 42, seq.Next())
}

func TestRecentTradesRingWindow(t *testing.T) {
	r := newTradeRing(4)
	for i := 1; i <= 6; i++ {
		r.push(TradeEvent{Seq: uint64(i)})
	}
	got := r.recent(0)
	require.Len(t, got, 4)
	assert.EqualValues(t, 6, got[0].Seq)
	assert.EqualValues(t, 3, got[3].Seq)

	got = r.recent(2)
	require.Len(t, got, 2)
	assert.EqualValues(t, 6, got[0].Seq)
}
