package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"tenorbook/config"
	"tenorbook/native/credit"
	"tenorbook/observability/logging"
	"tenorbook/observability/metrics"
	"tenorbook/oracle"
	"tenorbook/state"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Server exposes the market over JSON-RPC 2.0, with health and Prometheus
// endpoints beside it. The engine is single-writer; every action runs under
// the server mutex with the wall clock stamped in first.
type Server struct {
	mu        sync.Mutex
	engine    *credit.Engine
	manager   *state.Manager
	pauses    *config.PauseSet
	priceFeed *oracle.StaticPriceFeed
	rateFeed  *oracle.StaticRateFeed
	logger    *slog.Logger
	limiter   *rate.Limiter
	secret    []byte
	now       func() time.Time
}

// NewServer wires the RPC surface. The auth secret is read from the
// environment variable named in the node configuration; admin and keeper
// methods are rejected when it is unset.
func NewServer(engine *credit.Engine, manager *state.Manager, pauses *config.PauseSet, priceFeed *oracle.StaticPriceFeed, rateFeed *oracle.StaticRateFeed, cfg *config.Config, logger *slog.Logger) *Server {
	secret := strings.TrimSpace(os.Getenv(cfg.AuthSecretEnv))
	return &Server{
		engine:    engine,
		manager:   manager,
		pauses:    pauses,
		priceFeed: priceFeed,
		rateFeed:  rateFeed,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		secret:    []byte(secret),
		now:       time.Now,
	}
}

// Router assembles the HTTP surface: JSON-RPC at the root, health and metrics
// beside it.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/positions/{id}", s.handleRestPosition)
	r.Get("/offers/{address}", s.handleRestOffers)
	r.Get("/quote", s.handleRestQuote)
	r.Post("/", s.handle)
	return r
}

// Start serves the router on addr and blocks.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to method handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")
	correlation := uuid.NewString()
	w.Header().Set("X-Correlation-Id", correlation)

	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
		return
	}
	if handler.protected {
		if authErr := s.requireAuth(r); authErr != nil {
			s.logger.Warn("unauthorized rpc request",
				"method", req.Method,
				logging.MaskField("authorization", r.Header.Get("Authorization")),
			)
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}

	started := time.Now()
	s.logger.Debug("rpc request", "method", req.Method, "correlation", correlation)
	handler.fn(w, r, req)
	metrics.Credit().ObserveAction(req.Method, time.Since(started).Seconds())
}

type methodHandler struct {
	fn        func(http.ResponseWriter, *http.Request, *RPCRequest)
	protected bool
}

func (s *Server) methods() map[string]methodHandler {
	return map[string]methodHandler{
		"credit_depositCash":          {fn: s.handleDepositCash},
		"credit_withdrawCash":         {fn: s.handleWithdrawCash},
		"credit_depositCollateral":    {fn: s.handleDepositCollateral},
		"credit_withdrawCollateral":   {fn: s.handleWithdrawCollateral},
		"credit_buyCreditLimit":       {fn: s.handleBuyCreditLimit},
		"credit_sellCreditLimit":      {fn: s.handleSellCreditLimit},
		"credit_buyCreditMarket":      {fn: s.handleBuyCreditMarket},
		"credit_sellCreditMarket":     {fn: s.handleSellCreditMarket},
		"credit_compensate":           {fn: s.handleCompensate},
		"credit_repay":                {fn: s.handleRepay},
		"credit_claim":                {fn: s.handleClaim},
		"credit_selfLiquidate":        {fn: s.handleSelfLiquidate},
		"credit_liquidate":            {fn: s.handleLiquidate},
		"credit_setUserConfiguration": {fn: s.handleSetUserConfiguration},
		"credit_getUser":              {fn: s.handleGetUser},
		"credit_getDebtPosition":      {fn: s.handleGetDebtPosition},
		"credit_getCreditPosition":    {fn: s.handleGetCreditPosition},
		"credit_getLoanStatus":        {fn: s.handleGetLoanStatus},
		"credit_getCollateralRatio":   {fn: s.handleGetCollateralRatio},
		"credit_getConfig":            {fn: s.handleGetConfig},

		"credit_liquidateWithReplacement": {fn: s.handleLiquidateWithReplacement, protected: true},
		"admin_updateConfig":              {fn: s.handleUpdateConfig, protected: true},
		"admin_pause":                     {fn: s.handlePause, protected: true},
		"admin_setOraclePrice":            {fn: s.handleSetOraclePrice, protected: true},
		"admin_setOracleRate":             {fn: s.handleSetOracleRate, protected: true},
	}
}

// requireAuth validates the bearer JWT on protected methods.
func (s *Server) requireAuth(r *http.Request) *RPCError {
	if len(s.secret) == 0 {
		return &RPCError{Code: codeUnauthorized, Message: "admin methods disabled: no auth secret configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}
