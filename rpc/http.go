package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"creditlend/crypto"
	"creditlend/native/common"
	"creditlend/native/credit"
	"creditlend/native/lending"
	"creditlend/native/pricing"
	"creditlend/native/vault"
	"creditlend/observability/metrics"
)

const (
	maxRequestBytes = 1 << 20 // 1 MiB
	rateLimitWindow = time.Minute
	maxTxPerWindow  = 30
)

type rateLimiter struct {
	count       int
	windowStart time.Time
}

// Server exposes the credit and lending engines over JSON-RPC.
type Server struct {
	log     *slog.Logger
	lending *lending.Engine
	scores  *credit.ScoreEngine
	allow   *credit.AllowList
	oracle  *pricing.ManualOracle
	pauses  *common.PauseRegistry
	vaults  map[string]*vault.Vault
	admin   crypto.Address

	authToken string

	mu           sync.Mutex
	rateLimiters map[string]*rateLimiter
}

// NewServer wires the RPC surface to the engines. authToken guards the
// administrative and mutating methods; an empty token disables them.
func NewServer(log *slog.Logger, eng *lending.Engine, scores *credit.ScoreEngine, allow *credit.AllowList, oracle *pricing.ManualOracle, pauses *common.PauseRegistry, vaults map[string]*vault.Vault, admin crypto.Address, authToken string) *Server {
	return &Server{
		log:          log,
		lending:      eng,
		scores:       scores,
		allow:        allow,
		oracle:       oracle,
		pauses:       pauses,
		vaults:       vaults,
		admin:        admin,
		authToken:    strings.TrimSpace(authToken),
		rateLimiters: make(map[string]*rateLimiter),
	}
}

// Router builds the HTTP mux: JSON-RPC at /, liveness at /healthz and
// prometheus metrics at /metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Post("/", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// Start serves the router on addr until the listener fails.
func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		return
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	if s.isMutating(method) {
		if !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "missing or invalid bearer token", nil)
			return
		}
		if !s.allowSource(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
			return
		}
	}

	handler, ok := s.routes()[method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "unknown method", method)
		return
	}
	handler(w, r, &req)
	metrics.Lending().ObserveOperation(method, "handled")
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		"credit_getScore":         s.handleCreditGetScore,
		"credit_getBreakdown":     s.handleCreditGetBreakdown,
		"lend_depositCollateral":  s.handleDepositCollateral,
		"lend_withdrawCollateral": s.handleWithdrawCollateral,
		"lend_borrow":             s.handleBorrow,
		"lend_repay":              s.handleRepay,
		"lend_liquidate":          s.handleLiquidate,
		"lend_fundReserve":        s.handleFundReserve,
		"lend_getPosition":        s.handleGetPosition,
		"lend_getReserve":         s.handleGetReserve,
		"lend_getHealthFactor":    s.handleGetHealthFactor,
		"lend_getMaxBorrow":       s.handleGetMaxBorrow,
		"lend_isLiquidatable":     s.handleIsLiquidatable,
		"lend_calculateInterest":  s.handleCalculateInterest,
		"vault_deposit":           s.handleVaultDeposit,
		"vault_withdraw":          s.handleVaultWithdraw,
		"vault_getBalance":        s.handleVaultGetBalance,
		"vault_getBoost":          s.handleVaultGetBoost,
		"admin_addYield":          s.handleAddYield,
		"admin_setAssetSupported": s.handleSetAssetSupported,
		"admin_setInterestRate":   s.handleSetInterestRate,
		"admin_setLiqThreshold":   s.handleSetLiquidationThreshold,
		"admin_setLiqBonus":       s.handleSetLiquidationBonus,
		"admin_setPrice":          s.handleSetPrice,
		"admin_mint":              s.handleMint,
		"admin_pause":             s.handlePause,
		"admin_resume":            s.handleResume,
		"admin_grantScorer":       s.handleGrantScorer,
		"admin_revokeScorer":      s.handleRevokeScorer,
	}
}

func (s *Server) isMutating(method string) bool {
	switch method {
	case "lend_depositCollateral", "lend_withdrawCollateral", "lend_borrow",
		"lend_repay", "lend_liquidate", "lend_fundReserve",
		"vault_deposit", "vault_withdraw":
		return true
	}
	return strings.HasPrefix(method, "admin_")
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return false
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) == 1
}

func (s *Server) allowSource(source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	limiter, ok := s.rateLimiters[source]
	if !ok || now.Sub(limiter.windowStart) > rateLimitWindow {
		s.rateLimiters[source] = &rateLimiter{count: 1, windowStart: now}
		return true
	}
	if limiter.count >= maxTxPerWindow {
		return false
	}
	limiter.count++
	return true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RPCResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}

// writeEngineError maps engine failures onto the RPC error taxonomy,
// attaching the requested/available figures for capacity violations.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	var limit *lending.LimitError
	var data interface{}
	if errors.As(err, &limit) {
		data = limitDetail{
			Requested: limit.Requested.String(),
			Available: limit.Available.String(),
		}
	}

	status := http.StatusBadRequest
	code := codeServerError
	switch {
	case errors.Is(err, lending.ErrUnsupportedAsset):
		code = codeUnsupportedAsset
	case errors.Is(err, lending.ErrInvalidAmount), errors.Is(err, lending.ErrZeroAddress),
		errors.Is(err, vault.ErrInvalidAmount):
		code = codeInvalidAmount
	case errors.Is(err, lending.ErrInsufficientCollateral),
		errors.Is(err, lending.ErrBorrowLimitExceeded),
		errors.Is(err, lending.ErrInsufficientLiquidity),
		errors.Is(err, lending.ErrInsufficientBalance),
		errors.Is(err, lending.ErrHealthCheckFailed),
		errors.Is(err, vault.ErrInsufficientShares),
		errors.Is(err, vault.ErrInsufficientAssets):
		code = codeCapacityViolation
		status = http.StatusConflict
	case errors.Is(err, lending.ErrNoDebtToRepay), errors.Is(err, lending.ErrNotLiquidatable):
		code = codeStateViolation
		status = http.StatusConflict
	case errors.Is(err, pricing.ErrUnknownAsset), errors.Is(err, pricing.ErrStaleQuote):
		code = codeOracleFailure
		status = http.StatusBadGateway
	case errors.Is(err, common.ErrModulePaused):
		code = codeModulePaused
		status = http.StatusServiceUnavailable
	case errors.Is(err, lending.ErrAdminOnly):
		code = codeUnauthorized
		status = http.StatusForbidden
	default:
		status = http.StatusInternalServerError
	}
	writeError(w, status, id, code, err.Error(), data)
}
