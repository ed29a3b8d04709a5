// Package rest is the JSON order-entry adapter. It parses requests,
// stamps timestamps, and maps the core's booleans onto HTTP status
// codes; all matching semantics live in domain/book.
package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"keel/domain/book"
	"keel/service"
)

type Server struct {
	svc    *service.OrderService
	router *mux.Router
	log    *zap.Logger

	startTime       time.Time
	ordersReceived  atomic.Int64
	ordersRejected  atomic.Int64
	ordersCancelled atomic.Int64
	ordersReplaced  atomic.Int64
}

func NewServer(svc *service.OrderService, log *zap.Logger) *Server {
	s := &Server{
		svc:       svc,
		router:    mux.NewRouter(),
		log:       log,
		startTime: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.requestID)

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleReplaceOrder).Methods(http.MethodPut)
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleCancelOrder).Methods(http.MethodDelete)
	api.HandleFunc("/book/depth", s.handleDepth).Methods(http.MethodGet)
	api.HandleFunc("/trades", s.handleTrades).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler { return s.router }

// requestID tags every API request with a correlation id for the logs.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := uuid.NewString()
		w.Header().Set("X-Request-Id", rid)
		s.log.Debug("request",
			zap.String("rid", rid),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r)
	})
}

// SubmitOrderRequest is the JSON body for POST /api/v1/orders. The order
// id is caller-assigned, per the engine's contract.
type SubmitOrderRequest struct {
	ID   uint64 `json:"id"`
	Side string `json:"side"`
	Type string `json:"type"`
	TIF  string `json:"tif,omitempty"`
	Px   int64  `json:"px,omitempty"`
	Qty  int64  `json:"qty"`
}

// ReplaceOrderRequest is the JSON body for PUT /api/v1/orders/{id}.
type ReplaceOrderRequest struct {
	Px  int64 `json:"px"`
	Qty int64 `json:"qty"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.ID == 0 {
		respondError(w, http.StatusBadRequest, "id is required and must be positive")
		return
	}

	side, ok := parseSide(req.Side)
	if !ok {
		respondError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}
	otype, ok := parseType(req.Type)
	if !ok {
		respondError(w, http.StatusBadRequest, "type must be limit or market")
		return
	}
	tif, ok := parseTIF(req.TIF)
	if !ok {
		respondError(w, http.StatusBadRequest, "tif must be day, gtc, ioc, fok or post_only")
		return
	}

	order := book.Order{
		ID:   req.ID,
		Side: side,
		Type: otype,
		TIF:  tif,
		Px:   req.Px,
		Qty:  req.Qty,
		TsNs: time.Now().UnixNano(),
	}

	s.ordersReceived.Add(1)
	if !s.svc.PlaceOrder(order) {
		s.ordersRejected.Add(1)
		respondJSON(w, http.StatusConflict, statusResponse{Status: "rejected"})
		return
	}
	respondJSON(w, http.StatusCreated, statusResponse{Status: "accepted"})
}

func (s *Server) handleReplaceOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req ReplaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if !s.svc.ReplaceOrder(id, req.Px, req.Qty, time.Now().UnixNano()) {
		respondJSON(w, http.StatusConflict, statusResponse{Status: "rejected"})
		return
	}
	s.ordersReplaced.Add(1)
	respondJSON(w, http.StatusOK, statusResponse{Status: "replaced"})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if !s.svc.CancelOrder(id, time.Now().UnixNano()) {
		respondJSON(w, http.StatusNotFound, statusResponse{Status: "unknown"})
		return
	}
	s.ordersCancelled.Add(1)
	respondJSON(w, http.StatusOK, statusResponse{Status: "cancelled"})
}

// DepthResponse aggregates both sides of the book.
type DepthResponse struct {
	Symbol string           `json:"symbol"`
	Bids   []book.LevelView `json:"bids"`
	Asks   []book.LevelView `json:"asks"`
}

func (s *Server) handleDepth(w http.ResponseWriter, r *http.Request) {
	levels := 10
	if raw := r.URL.Query().Get("levels"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			respondError(w, http.StatusBadRequest, "levels must be in [1,1000]")
			return
		}
		levels = n
	}

	bids, asks := s.svc.Depth(levels)
	respondJSON(w, http.StatusOK, DepthResponse{
		Symbol: s.svc.Symbol(),
		Bids:   bids,
		Asks:   asks,
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 4096 {
			respondError(w, http.StatusBadRequest, "limit must be in [1,4096]")
			return
		}
		limit = n
	}
	respondJSON(w, http.StatusOK, s.svc.RecentTrades(limit))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"symbol": s.svc.Symbol(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds":   int64(time.Since(s.startTime).Seconds()),
		"orders_received":  s.ordersReceived.Load(),
		"orders_rejected":  s.ordersRejected.Load(),
		"orders_cancelled": s.ordersCancelled.Load(),
		"orders_replaced":  s.ordersReplaced.Load(),
	})
}

func parseSide(raw string) (book.Side, bool) {
	switch raw {
	case "buy", "BUY":
		return book.Buy, true
	case "sell", "SELL":
		return book.Sell, true
	}
	return 0, false
}

func parseType(raw string) (book.OrderType, bool) {
	switch raw {
	case "limit", "LIMIT":
		return book.Limit, true
	case "market", "MARKET":
		return book.Market, true
	}
	return 0, false
}

func parseTIF(raw string) (book.TIF, bool) {
	switch raw {
	case "", "day", "DAY":
		return book.Day, true
	case "gtc", "GTC":
		return book.GTC, true
	case "ioc", "IOC":
		return book.IOC, true
	case "fok", "FOK":
		return book.FOK, true
	case "post_only", "POST_ONLY":
		return book.PostOnly, true
	}
	return 0, false
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}
