package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/atvirokodosprendimai/agentledger/internal/application"
	"github.com/atvirokodosprendimai/agentledger/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
)

// CallerHeader carries the address the gateway authenticated.
const CallerHeader = "X-Caller-Address"

type contextKey string

const callerKey contextKey = "caller"

type Handler struct {
	ledger *application.Ledger
}

func NewRouter(ledger *application.Ledger) http.Handler {
	h := &Handler{ledger: ledger}
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(h.requireGateway)

		api.Post("/agents", h.handleRegisterAgent)
		api.Get("/agents/lookup", h.handleLookupAgent)
		api.Get("/agents/registered", h.handleAgentRegistered)
		api.Get("/agents/{id}", h.handleGetAgent)
		api.Post("/agents/{id}/deactivate", h.handleDeactivateAgent)
		api.Post("/agents/{id}/reactivate", h.handleReactivateAgent)
		api.Post("/agents/{id}/transfer", h.handleTransferAgent)
		api.Get("/agents/{id}/reputation", h.handleReputationSummary)
		api.Get("/agents/{id}/feedback", h.handleAgentFeedback)
		api.Get("/agents/{id}/account", h.handleAgentAccount)

		api.Post("/feedback", h.handleSubmitFeedback)
		api.Get("/feedback/{id}", h.handleGetFeedback)

		api.Post("/accounts", h.handleCreateAccount)
		api.Get("/accounts/{id}", h.handleGetAccount)
		api.Get("/accounts/{id}/balance", h.handleGetBalance)
		api.Get("/accounts/{id}/payments", h.handleAccountPayments)
		api.Post("/accounts/{id}/fund", h.handleFund)
		api.Post("/accounts/{id}/withdraw", h.handleWithdraw)
		api.Post("/accounts/{id}/owner", h.handleSetAccountOwner)
		api.Post("/accounts/{id}/deactivate", h.handleDeactivateAccount)
		api.Post("/accounts/{id}/reactivate", h.handleReactivateAccount)

		api.Post("/payments", h.handleTransfer)
		api.Get("/payments/{id}", h.handleGetPayment)

		api.Get("/treasury/totals", h.handleTotals)
		api.Get("/treasury/operators", h.handleListOperators)
		api.Post("/treasury/operators", h.handleGrantOperator)
		api.Delete("/treasury/operators/{address}", h.handleRevokeOperator)

		api.Get("/events", h.handleListEvents)
		api.Get("/events/stream", h.handleEventStream)
	})

	return r
}

// requireGateway checks the shared gateway key and records the caller
// address the gateway vouches for.
func (h *Handler) requireGateway(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var key string
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			key = strings.TrimSpace(authHeader[7:])
		}
		if err := h.ledger.AuthenticateGateway(key); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}

		var caller common.Address
		if raw := strings.TrimSpace(r.Header.Get(CallerHeader)); raw != "" {
			if !common.IsHexAddress(raw) {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid " + CallerHeader})
				return
			}
			caller = common.HexToAddress(raw)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey, caller)))
	})
}

func callerFromContext(ctx context.Context) common.Address {
	caller, _ := ctx.Value(callerKey).(common.Address)
	return caller
}

type registerAgentRequest struct {
	DID       string        `json:"did"`
	Role      string        `json:"role"`
	PublicKey hexutil.Bytes `json:"public_key"`
}

func (h *Handler) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.ledger.Identity.Register(r.Context(), application.RegisterInput{
		Owner:     callerFromContext(r.Context()),
		DID:       req.DID,
		Role:      req.Role,
		PublicKey: req.PublicKey,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleLookupAgent(w http.ResponseWriter, r *http.Request) {
	did := strings.TrimSpace(r.URL.Query().Get("did"))
	if did == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "did is required"})
		return
	}
	id, err := h.ledger.Identity.LookupByDID(r.Context(), did)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "did": did})
}

func (h *Handler) handleAgentRegistered(w http.ResponseWriter, r *http.Request) {
	did := strings.TrimSpace(r.URL.Query().Get("did"))
	ok, err := h.ledger.Identity.IsRegistered(r.Context(), did)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"did": did, "registered": ok})
}

func (h *Handler) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.ledger.Identity.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleDeactivateAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.ledger.Identity.Deactivate(r.Context(), callerFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleReactivateAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.ledger.Identity.Reactivate(r.Context(), callerFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type newOwnerRequest struct {
	Owner common.Address `json:"owner"`
}

func (h *Handler) handleTransferAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req newOwnerRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.ledger.Identity.TransferOwnership(r.Context(), callerFromContext(r.Context()), id, req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleReputationSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.ledger.Reputation.Summary(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleAgentFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ids, err := h.ledger.Reputation.FeedbackIDsForAgent(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agent_id": id, "feedback_ids": ids})
}

func (h *Handler) handleAgentAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	accountID, err := h.ledger.Treasury.GetAccountIDForAgent(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agent_id": id, "account_id": accountID})
}

type submitFeedbackRequest struct {
	AgentID           uint64              `json:"agent_id"`
	Kind              domain.FeedbackKind `json:"kind"`
	Score             int64               `json:"score"`
	Comment           string              `json:"comment"`
	ExternalReference string              `json:"external_reference"`
}

func (h *Handler) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req submitFeedbackRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.ledger.Reputation.SubmitFeedback(r.Context(), application.FeedbackInput{
		Submitter:         callerFromContext(r.Context()),
		AgentID:           req.AgentID,
		Kind:              req.Kind,
		Score:             req.Score,
		Comment:           req.Comment,
		ExternalReference: req.ExternalReference,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleGetFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.ledger.Reputation.GetFeedback(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type createAccountRequest struct {
	AgentID uint64          `json:"agent_id"`
	Owner   *common.Address `json:"owner"`
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decode(w, r, &req) {
		return
	}
	owner := callerFromContext(r.Context())
	if req.Owner != nil {
		owner = *req.Owner
	}
	v, err := h.ledger.Treasury.CreateAccount(r.Context(), req.AgentID, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.ledger.Treasury.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.ledger.Treasury.GetBalance(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account_id": id, "balance": v})
}

func (h *Handler) handleAccountPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ids, err := h.ledger.Treasury.PaymentIDsForAccount(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account_id": id, "payment_ids": ids})
}

type amountRequest struct {
	Amount domain.Amount `json:"amount"`
}

func (h *Handler) handleFund(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.ledger.Treasury.Fund(r.Context(), id, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type withdrawRequest struct {
	To     common.Address `json:"to"`
	Amount domain.Amount  `json:"amount"`
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req withdrawRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.ledger.Treasury.Withdraw(r.Context(), callerFromContext(r.Context()), id, req.To, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleSetAccountOwner(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req newOwnerRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.ledger.Treasury.SetAccountOwner(r.Context(), callerFromContext(r.Context()), id, req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleDeactivateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.ledger.Treasury.DeactivateAccount(r.Context(), callerFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleReactivateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.ledger.Treasury.ReactivateAccount(r.Context(), callerFromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type transferRequest struct {
	FromAccountID uint64        `json:"from_account_id"`
	ToAccountID   uint64        `json:"to_account_id"`
	Amount        domain.Amount `json:"amount"`
	Purpose       string        `json:"purpose"`
	ReceiptHash   string        `json:"receipt_hash"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.ledger.Treasury.Transfer(r.Context(), application.TransferInput{
		Caller:        callerFromContext(r.Context()),
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		Purpose:       req.Purpose,
		ReceiptHash:   req.ReceiptHash,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.ledger.Treasury.GetPayment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleTotals(w http.ResponseWriter, r *http.Request) {
	v, err := h.ledger.Treasury.Totals(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleListOperators(w http.ResponseWriter, r *http.Request) {
	v, err := h.ledger.Treasury.Operators(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"operators": v})
}

type operatorRequest struct {
	Address common.Address `json:"address"`
}

func (h *Handler) handleGrantOperator(w http.ResponseWriter, r *http.Request) {
	var req operatorRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.ledger.Treasury.GrantOperator(r.Context(), callerFromContext(r.Context()), req.Address); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"operator": req.Address, "enabled": true})
}

func (h *Handler) handleRevokeOperator(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid address"})
		return
	}
	addr := common.HexToAddress(raw)
	if err := h.ledger.Treasury.RevokeOperator(r.Context(), callerFromContext(r.Context()), addr); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"operator": addr, "enabled": false})
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	after, ok := queryUint(w, r, "after")
	if !ok {
		return
	}
	limit, ok := queryUint(w, r, "limit")
	if !ok {
		return
	}
	events, err := h.ledger.ListEvents(r.Context(), after, int(limit))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		// Amount fields report ledger errors from UnmarshalJSON.
		if domain.ClassOf(err) == domain.ClassValidation {
			writeError(w, err)
			return false
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func queryUint(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

func statusFor(class domain.ErrorClass) int {
	switch class {
	case domain.ClassValidation:
		return http.StatusBadRequest
	case domain.ClassConflict:
		return http.StatusConflict
	case domain.ClassNotFound:
		return http.StatusNotFound
	case domain.ClassAuthorization:
		return http.StatusForbidden
	case domain.ClassResource:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	class := domain.ClassOf(err)
	msg := err.Error()
	if class == domain.ClassInternal {
		log.Printf("api error: %v", err)
		msg = "internal error"
	}
	writeJSON(w, statusFor(class), map[string]any{"error": msg, "class": class})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
