package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"keel/domain/book"
	"keel/infra/outbox"
	"keel/infra/sequence"
)

// DepthPublisher is the lossy market-data sink (infra/kafka in prod).
type DepthPublisher interface {
	Send(ctx context.Context, key, value []byte) error
}

// recentTradeCap bounds the REST polling window, not the feed.
const recentTradeCap = 4096

// depthLevels is the rung count carried by published depth events.
const depthLevels = 10

// OrderService is the only write entry point into the engine. It owns
// the book behind a single mutex, drains the trade journal after every
// mutating call, and fans events out to the outbox, the market-data
// producer, and the in-process event channels.
type OrderService struct {
	mu   sync.Mutex
	book *book.Book

	seq    *sequence.Sequencer
	ledger *outbox.Outbox
	depth  DepthPublisher
	log    *zap.Logger

	recent *tradeRing

	tradeCh chan TradeEvent
	depthCh chan DepthEvent
}

// New wires the service. ledger and depth may be nil in embeddings that
// run without Kafka; events still flow to the in-process channels.
func New(
	b *book.Book,
	seq *sequence.Sequencer,
	ledger *outbox.Outbox,
	depth DepthPublisher,
	log *zap.Logger,
) *OrderService {
	return &OrderService{
		book:    b,
		seq:     seq,
		ledger:  ledger,
		depth:   depth,
		log:     log,
		recent:  newTradeRing(recentTradeCap),
		tradeCh: make(chan TradeEvent, 256),
		depthCh: make(chan DepthEvent, 16),
	}
}

// Symbol returns the instrument served by this engine.
func (s *OrderService) Symbol() string { return s.book.Symbol() }

// Tick returns the instrument's minimum price increment.
func (s *OrderService) Tick() int64 { return s.book.Tick() }

// PlaceOrder submits a new order intent. The boolean mirrors the core's
// atomic accept/reject contract.
func (s *OrderService) PlaceOrder(o book.Order) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.book.Add(o)
	s.log.Debug("place",
		zap.Uint64("id", o.ID),
		zap.Stringer("side", o.Side),
		zap.Stringer("type", o.Type),
		zap.Stringer("tif", o.TIF),
		zap.Int64("px", o.Px),
		zap.Int64("qty", o.Qty),
		zap.Bool("accepted", ok),
	)
	if ok {
		s.publishLocked()
	}
	return ok
}

// CancelOrder cancels a resting order by id.
func (s *OrderService) CancelOrder(id uint64, tsNs int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.book.Cancel(id, tsNs)
	s.log.Debug("cancel", zap.Uint64("id", id), zap.Bool("accepted", ok))
	if ok {
		s.publishLocked()
	}
	return ok
}

// ReplaceOrder amends a resting order; a price change may trade.
func (s *OrderService) ReplaceOrder(id uint64, newPx, newQty, tsNs int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.book.Replace(id, newPx, newQty, tsNs)
	s.log.Debug("replace",
		zap.Uint64("id", id),
		zap.Int64("new_px", newPx),
		zap.Int64("new_qty", newQty),
		zap.Bool("accepted", ok),
	)
	if ok {
		s.publishLocked()
	}
	return ok
}

// Depth returns owned copies of up to levels rungs per side.
func (s *OrderService) Depth(levels int) (bids, asks []book.LevelView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Bids(levels), s.book.Asks(levels)
}

// RecentTrades returns up to limit trade events, newest first.
func (s *OrderService) RecentTrades(limit int) []TradeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recent.recent(limit)
}

// TradeEvents is the in-process trade stream. Single consumer; events
// are dropped when the consumer lags rather than blocking the engine.
func (s *OrderService) TradeEvents() <-chan TradeEvent { return s.tradeCh }

// DepthEvents is the in-process depth stream, same delivery contract.
func (s *OrderService) DepthEvents() <-chan DepthEvent { return s.depthCh }

// publishLocked drains the journal and fans out. Caller holds s.mu.
func (s *OrderService) publishLocked() {
	trades := s.book.DrainTrades()
	for _, t := range trades {
		ev := newTradeEvent(s.book.Symbol(), s.seq.Next(), t)
		s.recent.push(ev)

		if s.ledger != nil {
			payload, err := json.Marshal(ev)
			if err != nil {
				s.log.Error("encode trade event", zap.Error(err))
				continue
			}
			if err := s.ledger.Append(ev.Seq, payload); err != nil {
				s.log.Error("outbox append",
					zap.Uint64("seq", ev.Seq), zap.Error(err))
			}
		}

		select {
		case s.tradeCh <- ev:
		default:
		}
	}

	ev := DepthEvent{
		V:      eventVersion,
		Type:   "depth",
		Symbol: s.book.Symbol(),
		Seq:    s.seq.Current(),
		Bids:   s.book.Bids(depthLevels),
		Asks:   s.book.Asks(depthLevels),
	}

	if s.depth != nil {
		payload, err := json.Marshal(ev)
		if err != nil {
			s.log.Error("encode depth event", zap.Error(err))
		} else if err := s.depth.Send(context.Background(), []byte(s.book.Symbol()), payload); err != nil {
			s.log.Warn("depth publish", zap.Error(err))
		}
	}

	select {
	case s.depthCh <- ev:
	default:
	}
}

// ResumeSeq positions the feed sequencer after the last ledgered event so
// a restarted engine does not reuse sequence numbers.
func ResumeSeq(ledger *outbox.Outbox) (*sequence.Sequencer, error) {
	if ledger == nil {
		return sequence.New(0), nil
	}
	last, err := ledger.LastSeq()
	if err != nil {
		return nil, fmt.Errorf("service: resume sequencer: %w", err)
	}
	return sequence.New(last), nil
}
