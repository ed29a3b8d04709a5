package service

import "keel/domain/book"

// TradeEvent is the JSON feed record for one fill. Seq is the
// engine-assigned feed sequence; TsNs is the taker's timestamp.
type TradeEvent struct {
	V          int    `json:"v"`
	Type       string `json:"type"`
	Symbol     string `json:"symbol"`
	Seq        uint64 `json:"seq"`
	TakerID    uint64 `json:"taker_id"`
	MakerID    uint64 `json:"maker_id"`
	Px         int64  `json:"px"`
	Qty        int64  `json:"qty"`
	TsNs       int64  `json:"ts_ns"`
	TakerIsBuy bool   `json:"taker_is_buy"`
}

// DepthEvent is the JSON feed record for an aggregated book snapshot.
type DepthEvent struct {
	V      int              `json:"v"`
	Type   string           `json:"type"`
	Symbol string           `json:"symbol"`
	Seq    uint64           `json:"seq"`
	Bids   []book.LevelView `json:"bids"`
	Asks   []book.LevelView `json:"asks"`
}

const eventVersion = 1

func newTradeEvent(symbol string, seq uint64, t book.Trade) TradeEvent {
	return TradeEvent{
		V:          eventVersion,
		Type:       "trade",
		Symbol:     symbol,
		Seq:        seq,
		TakerID:    t.TakerID,
		MakerID:    t.MakerID,
		Px:         t.Px,
		Qty:        t.Qty,
		TsNs:       t.TsNs,
		TakerIsBuy: t.TakerIsBuy,
	}
}
