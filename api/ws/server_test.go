package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"keel/domain/book"
	"keel/infra/sequence"
	"keel/service"
)

func TestHubBroadcastAndDrop(t *testing.T) {
	h := newHub[int]()
	fast := h.Subscribe(4)
	slow := h.Subscribe(1)

	h.Broadcast(1)
	h.Broadcast(2)

	assert.Equal(t, 1, <-fast.ch)
	assert.Equal(t, 2, <-fast.ch)

	// The slow subscriber's buffer held only the first message.
	assert.Equal(t, 1, <-slow.ch)
	select {
	case v := <-slow.ch:
		t.Fatalf("expected drop, got %d", v)
	default:
	}

	h.Unsubscribe(slow)
	h.Broadcast(3)
	assert.Equal(t, 3, <-fast.ch)
	h.Unsubscribe(fast)
}

func TestTradeStream(t *testing.T) {
	svc := service.New(book.New("KEL-USD", 50), sequence.New(0), nil, nil, zap.NewNop())
	srv := NewServer(svc, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	muxer := http.NewServeMux()
	srv.Register(muxer)
	ts := httptest.NewServer(muxer)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/trades"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Give the subscription a moment to register before trading.
	time.Sleep(50 * time.Millisecond)

	require.True(t, svc.PlaceOrder(book.Order{ID: 1, Side: book.Sell, Type: book.Limit, TIF: book.Day, Px: 10100, Qty: 5, TsNs: 1}))
	require.True(t, svc.PlaceOrder(book.Order{ID: 2, Side: book.Buy, Type: book.Limit, TIF: book.Day, Px: 10100, Qty: 5, TsNs: 2}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev service.TradeEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "trade", ev.Type)
	assert.Equal(t, uint64(2), ev.TakerID)
	assert.Equal(t, uint64(1), ev.MakerID)
	assert.EqualValues(t, 5, ev.Qty)
}
