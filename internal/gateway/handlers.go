// Package gateway exposes the market and the accounts over HTTP and
// streams market snapshots to WebSocket clients.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"tradesim/internal/account"
	"tradesim/internal/logger"
	"tradesim/internal/model"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
	maxBodyBytes    = 1 << 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// MarketReader returns the current snapshot of a universe.
type MarketReader interface {
	Latest(kind model.Kind) (model.Snapshot, bool)
}

// Journal lists an account's transactions newest first. Stores that keep a
// separate transaction table implement it; otherwise the account document
// is used.
type Journal interface {
	Transactions(ctx context.Context, accountID string, limit int) ([]model.Transaction, error)
}

// HTTPObserver records per-route request metrics.
type HTTPObserver interface {
	ObserveHTTP(route string, code int, took time.Duration)
}

// Deps are the collaborators of a Server. Journal, Observer and Health are
// optional.
type Deps struct {
	Market   MarketReader
	Accounts *account.Service
	Hub      *Hub
	Journal  Journal
	Observer HTTPObserver
	Health   http.Handler
}

// Server serves the REST API and the snapshot stream.
type Server struct {
	deps    Deps
	started time.Time
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	return &Server{deps: deps, started: time.Now()}
}

// Routes returns the HTTP handler with every route registered.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, "GET /api/market/{kind}", s.handleMarket)
	s.handle(mux, "GET /api/market/{kind}/{symbol}", s.handleInstrument)

	s.handle(mux, "POST /api/accounts", s.handleOpen)
	s.handle(mux, "GET /api/accounts/{id}", s.handleAccount)
	s.handle(mux, "GET /api/accounts/{id}/valuation", s.handleValuation)
	s.handle(mux, "GET /api/accounts/{id}/transactions", s.handleTransactions)
	s.handle(mux, "POST /api/accounts/{id}/buy", s.handleTrade("buy"))
	s.handle(mux, "POST /api/accounts/{id}/sell", s.handleTrade("sell"))
	s.handle(mux, "POST /api/accounts/{id}/credit", s.handleCredit)
	s.handle(mux, "POST /api/accounts/{id}/withdraw", s.handleWithdraw)

	s.handle(mux, "GET /api/stats", s.handleStats)
	if s.deps.Health != nil {
		s.handle(mux, "GET /healthz", s.deps.Health.ServeHTTP)
	}

	// The upgrade needs the raw ResponseWriter, so /ws skips the recorder.
	mux.HandleFunc("GET /ws", s.handleWS)

	return withRequestID(withCORS(mux))
}

// ── market ──

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, r, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit < 1 {
		writeError(w, r, http.StatusBadRequest, "invalid limit")
		return
	}
	limit = min(limit, maxPageSize)

	page := marketPage{Kind: snap.Kind, Seq: snap.Seq, At: snap.At, Total: snap.Len(), Offset: offset}
	if q := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("q"))); q != "" {
		var matched []model.Instrument
		for _, in := range snap.Instruments {
			if strings.Contains(in.Symbol, q) || strings.Contains(strings.ToUpper(in.Name), q) {
				matched = append(matched, in)
			}
		}
		page.Total = len(matched)
		page.Instruments = paginate(matched, offset, limit)
	} else {
		page.Instruments = paginate(snap.Instruments, offset, limit)
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleInstrument(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	symbol := strings.ToUpper(r.PathValue("symbol"))
	in, found := snap.Lookup(symbol)
	if !found {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("unknown instrument %s", symbol))
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (model.Snapshot, bool) {
	kind, err := model.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, err.Error())
		return model.Snapshot{}, false
	}
	snap, ok := s.deps.Market.Latest(kind)
	if !ok {
		writeError(w, r, http.StatusServiceUnavailable, fmt.Sprintf("%s universe not running", kind))
		return model.Snapshot{}, false
	}
	return snap, true
}

func paginate(in []model.Instrument, offset, limit int) []model.Instrument {
	if offset >= len(in) {
		return []model.Instrument{}
	}
	return in[offset:min(offset+limit, len(in))]
}

// ── accounts ──

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	acct, err := s.deps.Accounts.Open(r.Context(), req.ID, req.Name)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.deps.Accounts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) handleValuation(w http.ResponseWriter, r *http.Request) {
	v, err := s.deps.Accounts.Valuation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		writeError(w, r, http.StatusBadRequest, "invalid limit")
		return
	}

	// The journal has no notion of a missing account, so check first.
	acct, err := s.deps.Accounts.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	txs := acct.Transactions
	if s.deps.Journal != nil {
		if txs, err = s.deps.Journal.Transactions(r.Context(), id, limit); err != nil {
			writeDomainError(w, r, err)
			return
		}
	} else if limit > 0 && limit < len(txs) {
		txs = txs[:limit]
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleTrade(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tradeRequest
		if !decode(w, r, &req) {
			return
		}
		kind, err := model.ParseKind(req.Kind)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

		trade := s.deps.Accounts.Buy
		if op == "sell" {
			trade = s.deps.Accounts.Sell
		}
		delta, err := trade(r.Context(), r.PathValue("id"), kind, symbol, req.Amount)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, delta)
	}
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if !decode(w, r, &req) {
		return
	}
	credit, err := req.toLedger()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	delta, err := s.deps.Accounts.Credit(r.Context(), r.PathValue("id"), credit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, delta)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Method) == "" {
		writeError(w, r, http.StatusBadRequest, "method is required")
		return
	}
	delta, err := s.deps.Accounts.Withdraw(r.Context(), r.PathValue("id"), req.Amount, req.Method)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, delta)
}

// ── stream & stats ──

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	var kinds []model.Kind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			kind, err := model.ParseKind(part)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			kinds = append(kinds, kind)
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", append(logger.Attrs(r.Context()), "error", err)...)
		return
	}
	s.deps.Hub.Attach(conn, kinds)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		Clients:   s.deps.Hub.ClientCount(),
		Universes: make(map[model.Kind]universeStats, 2),
		EmitLag:   s.deps.Hub.Lag(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	}
	for _, kind := range model.Kinds() {
		if snap, ok := s.deps.Market.Latest(kind); ok {
			resp.Universes[kind] = universeStats{Seq: snap.Seq, At: snap.At, Size: snap.Len()}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ── helpers ──

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg, RequestID: logger.RequestID(r.Context())})
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
		slog.Error("request failed", append(logger.Attrs(r.Context()), "path", r.URL.Path, "error", err)...)
	}
	writeError(w, r, code, err.Error())
}
