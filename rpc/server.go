package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fusionswap/native/fusion"
)

// Server exposes the four settlement entry points plus escrow lookup over
// HTTP. It is a thin collaborator: all invariants live in the engine, the
// server only translates the wire format and reports outcomes.
type Server struct {
	engine   *fusion.Engine
	state    *fusion.State
	log      *slog.Logger
	router   chi.Router
	requests *prometheus.CounterVec
}

// NewServer wires the router, middleware, and metrics registry.
func NewServer(engine *fusion.Engine, state *fusion.State, log *slog.Logger) *Server {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fusion_requests_total",
		Help: "Settlement requests by operation and outcome.",
	}, []string{"op", "outcome"})
	registry.MustRegister(requests)

	s := &Server{
		engine:   engine,
		state:    state,
		log:      log,
		requests: requests,
	}

	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Route("/v1", func(r chi.Router) {
		r.Post("/orders", s.handleCreate)
		r.Post("/orders/fill", s.handleFill)
		r.Post("/orders/cancel", s.handleCancel)
		r.Post("/orders/cancel-by-resolver", s.handleCancelByResolver)
		r.Get("/escrows/{maker}/{orderHash}", s.handleGetEscrow)
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, "create", http.StatusBadRequest, err)
		return
	}
	maker, err := parseIdentity(req.Maker)
	if err != nil {
		s.reject(w, "create", http.StatusBadRequest, err)
		return
	}
	reduced, err := req.Order.toReduced()
	if err != nil {
		s.reject(w, "create", http.StatusBadRequest, err)
		return
	}
	accounts, err := req.Accounts.toAccounts()
	if err != nil {
		s.reject(w, "create", http.StatusBadRequest, err)
		return
	}
	esc, err := s.engine.Create(maker, reduced, accounts)
	if err != nil {
		s.rejectEngine(w, "create", err)
		return
	}
	s.respond(w, "create", http.StatusCreated, escrowToResponse(esc))
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	var req fillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, "fill", http.StatusBadRequest, err)
		return
	}
	taker, err := parseIdentity(req.Taker)
	if err != nil {
		s.reject(w, "fill", http.StatusBadRequest, err)
		return
	}
	maker, err := parseIdentity(req.Maker)
	if err != nil {
		s.reject(w, "fill", http.StatusBadRequest, err)
		return
	}
	reduced, err := req.Order.toReduced()
	if err != nil {
		s.reject(w, "fill", http.StatusBadRequest, err)
		return
	}
	accounts, err := req.Accounts.toAccounts()
	if err != nil {
		s.reject(w, "fill", http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.reject(w, "fill", http.StatusBadRequest, err)
		return
	}
	result, err := s.engine.Fill(taker, maker, reduced, accounts, amount)
	if err != nil {
		s.rejectEngine(w, "fill", err)
		return
	}
	s.respond(w, "fill", http.StatusOK, fillResponse{
		OrderHash:       formatIdentity(result.OrderHash),
		DstAmount:       formatAmount(result.DstAmount),
		ProtocolFee:     formatAmount(result.ProtocolFeeAmount),
		IntegratorFee:   formatAmount(result.IntegratorFeeAmount),
		MakerAmount:     formatAmount(result.MakerDstAmount),
		RemainingAmount: formatAmount(result.RemainingAmount),
		Closed:          result.Closed,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, "cancel", http.StatusBadRequest, err)
		return
	}
	maker, err := parseIdentity(req.Maker)
	if err != nil {
		s.reject(w, "cancel", http.StatusBadRequest, err)
		return
	}
	orderHash, err := parseIdentity(req.OrderHash)
	if err != nil {
		s.reject(w, "cancel", http.StatusBadRequest, err)
		return
	}
	result, err := s.engine.Cancel(maker, orderHash)
	if err != nil {
		s.rejectEngine(w, "cancel", err)
		return
	}
	s.respond(w, "cancel", http.StatusOK, cancelResponse{
		OrderHash: formatIdentity(result.OrderHash),
		Returned:  formatAmount(result.ReturnedAmount),
	})
}

func (s *Server) handleCancelByResolver(w http.ResponseWriter, r *http.Request) {
	var req resolverCancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, "cancel_by_resolver", http.StatusBadRequest, err)
		return
	}
	resolver, err := parseIdentity(req.Resolver)
	if err != nil {
		s.reject(w, "cancel_by_resolver", http.StatusBadRequest, err)
		return
	}
	maker, err := parseIdentity(req.Maker)
	if err != nil {
		s.reject(w, "cancel_by_resolver", http.StatusBadRequest, err)
		return
	}
	reduced, err := req.Order.toReduced()
	if err != nil {
		s.reject(w, "cancel_by_resolver", http.StatusBadRequest, err)
		return
	}
	accounts, err := req.Accounts.toAccounts()
	if err != nil {
		s.reject(w, "cancel_by_resolver", http.StatusBadRequest, err)
		return
	}
	result, err := s.engine.CancelByResolver(resolver, maker, reduced, accounts)
	if err != nil {
		s.rejectEngine(w, "cancel_by_resolver", err)
		return
	}
	s.respond(w, "cancel_by_resolver", http.StatusOK, cancelResponse{
		OrderHash: formatIdentity(result.OrderHash),
		Premium:   formatAmount(result.Premium),
		Returned:  formatAmount(result.ReturnedAmount),
	})
}

func (s *Server) handleGetEscrow(w http.ResponseWriter, r *http.Request) {
	maker, err := parseIdentity(chi.URLParam(r, "maker"))
	if err != nil {
		s.reject(w, "get_escrow", http.StatusBadRequest, err)
		return
	}
	orderHash, err := parseIdentity(chi.URLParam(r, "orderHash"))
	if err != nil {
		s.reject(w, "get_escrow", http.StatusBadRequest, err)
		return
	}
	esc, ok := s.state.EscrowGet(maker, orderHash)
	if !ok {
		s.reject(w, "get_escrow", http.StatusNotFound, fusion.ErrEscrowNotFound)
		return
	}
	s.respond(w, "get_escrow", http.StatusOK, escrowToResponse(esc))
}

func (s *Server) respond(w http.ResponseWriter, op string, status int, payload any) {
	s.requests.WithLabelValues(op, "ok").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("encode response", "op", op, "error", err)
	}
}

func (s *Server) reject(w http.ResponseWriter, op string, status int, err error) {
	s.requests.WithLabelValues(op, "rejected").Inc()
	s.log.Info("request rejected", "op", op, "status", status, "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (s *Server) rejectEngine(w http.ResponseWriter, op string, err error) {
	s.reject(w, op, statusForError(err), err)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, fusion.ErrEscrowNotFound):
		return http.StatusNotFound
	case errors.Is(err, fusion.ErrEscrowExists):
		return http.StatusConflict
	case errors.Is(err, fusion.ErrResolverAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, fusion.ErrInvalidAmount),
		errors.Is(err, fusion.ErrOrderExpired),
		errors.Is(err, fusion.ErrOrderNotExpired),
		errors.Is(err, fusion.ErrInvalidEstimatedDstAmount),
		errors.Is(err, fusion.ErrInvalidProtocolSurplusFee),
		errors.Is(err, fusion.ErrInconsistentNativeDstTrait),
		errors.Is(err, fusion.ErrInconsistentProtocolFeeConfig),
		errors.Is(err, fusion.ErrInconsistentIntegratorFeeConfig),
		errors.Is(err, fusion.ErrInvalidAuctionData),
		errors.Is(err, fusion.ErrNotEnoughTokensInEscrow),
		errors.Is(err, fusion.ErrInvalidCancellationFee),
		errors.Is(err, fusion.ErrResolverCancelForbidden),
		errors.Is(err, fusion.ErrArithmeticOverflow),
		errors.Is(err, fusion.ErrInsufficientFunds):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
