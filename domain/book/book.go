package book

// handle locates a resting order: which side and which price level.
// Position inside the level is rediscovered by scanning the queue.
type handle struct {
	side Side
	px   int64
}

// Book is the matching core for one instrument. It owns the two ladders,
// the id index, and the trade journal exclusively; snapshots and drained
// trades are returned as copies, never as aliases into the book.
type Book struct {
	symbol string
	tick   int64

	bids *ladder
	asks *ladder

	index  map[uint64]handle
	trades []Trade
}

// New creates an empty book for symbol with the given tick size.
func New(symbol string, tick int64) *Book {
	return &Book{
		symbol: symbol,
		tick:   tick,
		bids:   newLadder(true),
		asks:   newLadder(false),
		index:  make(map[uint64]handle),
	}
}

// Symbol returns the instrument label this book was created with.
func (b *Book) Symbol() string { return b.symbol }

// Tick returns the minimum price increment.
func (b *Book) Tick() int64 { return b.tick }

// Add admits an order intent. It returns false on rejection; a rejection
// leaves the book untouched and emits no trades. A true return for a
// Market order means the call completed, not that it fully filled.
func (b *Book) Add(o Order) bool {
	if o.Qty <= 0 {
		return false
	}
	if _, dup := b.index[o.ID]; dup {
		return false
	}

	isMarket := o.Type == Market
	if !isMarket {
		if o.Px <= 0 || o.Px%b.tick != 0 {
			return false
		}
	}

	switch o.TIF {
	case PostOnly:
		// Maker-only: never trades on entry, Market is contradictory.
		if isMarket || b.wouldCross(o) {
			return false
		}
		b.rest(o)
		return true

	case FOK:
		if !b.canFullyFill(o) {
			return false
		}
		in := o
		b.matchIncoming(&in)
		return in.Qty == 0
	}

	if isMarket {
		in := o
		b.matchIncoming(&in)
		// Markets never rest, whatever remains is discarded.
		return true
	}

	in := o
	b.matchIncoming(&in)

	if o.TIF == IOC {
		return true
	}

	if in.Qty > 0 {
		b.rest(in)
	}
	return true
}

// Cancel removes a resting order. tsNs is accepted for audit symmetry
// with Add/Replace but unused by the algorithm.
func (b *Book) Cancel(id uint64, tsNs int64) bool {
	h, ok := b.index[id]
	if !ok {
		return false
	}

	side := b.ladderFor(h.side)
	lvl := side.get(h.px)
	if lvl == nil {
		return false
	}
	e := lvl.find(id)
	if e == nil {
		return false
	}

	lvl.unlink(e)
	if lvl.empty() {
		side.remove(h.px)
	}
	delete(b.index, id)
	return true
}

// Replace amends a resting order. Shrinking at the same price keeps queue
// position; growing re-queues at the tail with the new timestamp; a price
// change cancels and re-enters the order as a fresh Day limit, which may
// trade immediately.
func (b *Book) Replace(id uint64, newPx, newQty, tsNs int64) bool {
	if newQty <= 0 {
		return false
	}
	h, ok := b.index[id]
	if !ok {
		return false
	}

	side := b.ladderFor(h.side)
	lvl := side.get(h.px)
	if lvl == nil {
		return false
	}
	e := lvl.find(id)
	if e == nil {
		return false
	}

	if newPx == h.px {
		switch {
		case newQty == e.qty:
			return true
		case newQty < e.qty:
			// Shrink in place: FIFO position and timestamp survive.
			lvl.totalQty -= e.qty - newQty
			e.qty = newQty
			return true
		default:
			// Grow: forfeit time priority, move to the back.
			tif := e.tif
			lvl.unlink(e)
			lvl.enqueue(id, newQty, tsNs, tif)
			return true
		}
	}

	// Price change: validate before touching state.
	if newPx <= 0 || newPx%b.tick != 0 {
		return false
	}

	lvl.unlink(e)
	if lvl.empty() {
		side.remove(h.px)
	}
	delete(b.index, id)

	in := Order{
		ID:   id,
		Side: h.side,
		Type: Limit,
		TIF:  Day,
		Px:   newPx,
		Qty:  newQty,
		TsNs: tsNs,
	}
	b.matchIncoming(&in)
	if in.Qty > 0 {
		b.rest(in)
	}
	return true
}

// Bids returns up to depth aggregated rungs from the best bid downward.
func (b *Book) Bids(depth int) []LevelView {
	return snapshotLadder(b.bids, depth)
}

// Asks returns up to depth aggregated rungs from the best ask upward.
func (b *Book) Asks(depth int) []LevelView {
	return snapshotLadder(b.asks, depth)
}

// DrainTrades returns all trades emitted since the previous drain, in
// emission order, and clears the journal.
func (b *Book) DrainTrades() []Trade {
	out := b.trades
	b.trades = nil
	return out
}

// Orders returns the number of resting orders across both sides.
func (b *Book) Orders() int { return len(b.index) }

func (b *Book) ladderFor(s Side) *ladder {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

func (b *Book) opposite(s Side) *ladder {
	if s == Buy {
		return b.asks
	}
	return b.bids
}

// matchIncoming sweeps the opposite ladder best-first, consuming FIFO
// heads until the taker is exhausted or no acceptable price remains.
// in.Qty is left holding the residual. Trades print at the resting price.
func (b *Book) matchIncoming(in *Order) {
	opp := b.opposite(in.Side)
	isMarket := in.Type == Market

	for in.Qty > 0 {
		lvl := opp.best()
		if lvl == nil {
			break
		}
		if !isMarket {
			if in.Side == Buy && in.Px < lvl.px {
				break
			}
			if in.Side == Sell && in.Px > lvl.px {
				break
			}
		}

		for in.Qty > 0 && !lvl.empty() {
			maker := lvl.head
			exec := min(in.Qty, maker.qty)

			b.trades = append(b.trades, Trade{
				TakerID:    in.ID,
				MakerID:    maker.id,
				Px:         lvl.px,
				Qty:        exec,
				TsNs:       in.TsNs,
				TakerIsBuy: in.Side == Buy,
			})

			in.Qty -= exec
			lvl.reduce(maker, exec)

			if maker.qty == 0 {
				delete(b.index, maker.id)
				lvl.unlink(maker)
			} else {
				// Maker partially filled at the head: the taker is done.
				break
			}
		}

		if lvl.empty() {
			opp.remove(lvl.px)
		}
	}
}

// wouldCross reports whether a limit order would trade on entry. Touching
// the opposite best (px == best) counts as crossing for PostOnly.
func (b *Book) wouldCross(o Order) bool {
	if o.Type == Market {
		return true
	}
	if o.Side == Buy {
		bestAsk, ok := b.asks.bestPx()
		return ok && o.Px >= bestAsk
	}
	bestBid, ok := b.bids.bestPx()
	return ok && o.Px <= bestBid
}

// canFullyFill walks the opposite ladder without mutating it and reports
// whether acceptable resting quantity covers the full order. Used as the
// FOK pre-check; no trade is emitted here.
func (b *Book) canFullyFill(o Order) bool {
	need := o.Qty
	if need <= 0 {
		return true
	}

	b.opposite(o.Side).walk(func(lvl *Level) bool {
		if o.Type == Limit {
			if o.Side == Buy && lvl.px > o.Px {
				return false
			}
			if o.Side == Sell && lvl.px < o.Px {
				return false
			}
		}
		need -= lvl.totalQty
		return need > 0
	})
	return need <= 0
}

// rest appends the (residual of an) order at its own side's level tail
// and records its handle in the id index.
func (b *Book) rest(o Order) {
	lvl := b.ladderFor(o.Side).upsert(o.Px)
	lvl.enqueue(o.ID, o.Qty, o.TsNs, o.TIF)
	b.index[o.ID] = handle{side: o.Side, px: o.Px}
}

func snapshotLadder(t *ladder, depth int) []LevelView {
	if depth <= 0 {
		return nil
	}
	out := make([]LevelView, 0, depth)
	t.walk(func(lvl *Level) bool {
		out = append(out, lvl.view())
		return len(out) < depth
	})
	return out
}
