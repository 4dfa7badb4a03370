package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/atvirokodosprendimai/agentledger/internal/application"
	"github.com/atvirokodosprendimai/agentledger/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type Server struct {
	ledger   *application.Ledger
	listener net.Listener
	path     string
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Every call carries the gateway key and the caller address next to its own
// params.
type envelope struct {
	Key    string `json:"key"`
	Caller string `json:"caller"`
}

func Start(path string, ledger *application.Ledger) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	s := &Server{ledger: ledger, listener: ln, path: path}
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}, ID: nil})
			return
		}

		resp := s.dispatch(context.Background(), req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32600, Message: "invalid request"}, ID: req.ID}
	}
	caller, rpcResp, ok := s.authz(req)
	if !ok {
		return rpcResp
	}
	l := s.ledger

	switch req.Method {
	case "agents.register":
		var p struct {
			DID       string        `json:"did"`
			Role      string        `json:"role"`
			PublicKey hexutil.Bytes `json:"public_key"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		return result(req.ID)(l.Identity.Register(ctx, application.RegisterInput{Owner: caller, DID: p.DID, Role: p.Role, PublicKey: p.PublicKey}))
	case "agents.get":
		var p idParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		return result(req.ID)(l.Identity.Get(ctx, p.ID))
	case "agents.lookup":
		var p struct {
			DID string `json:"did"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		id, err := l.Identity.LookupByDID(ctx, p.DID)
		return result(req.ID)(map[string]any{"id": id, "did": p.DID}, err)
	case "agents.is_registered":
		var p struct {
			DID string `json:"did"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		ok, err := l.Identity.IsRegistered(ctx, p.DID)
		return result(req.ID)(map[string]any{"did": p.DID, "registered": ok}, err)
	case "agents.deactivate":
		var p idParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		return result(req.ID)(l.Identity.Deactivate(ctx, caller, p.ID))
	case "agents.reactivate":
		var p idParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		return result(req.ID)(l.Identity.Reactivate(ctx, caller, p.ID))
	case "agents.transfer":
		var p struct {
			ID    uint64         `json:"id"`
			Owner common.Address `json:"owner"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		return result(req.ID)(l.Identity.TransferOwnership(ctx, caller, p.ID, p.Owner))

	case "feedback.submit":
		var p struct {
			AgentID           uint64              `json:"agent_id"`
			Kind              domain.FeedbackKind `json:"kind"`
			Score             int64               `json:"score"`
			Comment           string              `json:"comment"`
			ExternalReference string              `json:"external_reference"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		return result(req.ID)(l.Reputation.SubmitFeedback(ctx, application.FeedbackInput{
			Submitter:         caller,
			AgentID:           p.AgentID,
			Kind:              p.Kind,
			Score:             p.Score,
			Comment:           p.Comment,
			ExternalReference: p.ExternalReference,
		}))
	case "feedback.get":
		var p idParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		return result(req.ID)(l.Reputation.GetFeedback(ctx, p.ID))
	case "feedback.list":
		var p agentParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		ids, err := l.Reputation.FeedbackIDsForAgent(ctx, p.AgentID)
		return result(req.ID)(map[string]any{"agent_id": p.AgentID, "feedback_ids": ids}, err)
	case "reputation.summary":
		var p agentParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		return result(req.ID)(l.Reputation.Summary(ctx, p.AgentID))

	case "accounts.create":
		var p struct {
			AgentID uint64          `json:"agent_id"`
			Owner   *common.Address `json:"owner"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		owner := caller
		if p.Owner != nil {
			owner = *p.Owner
		}
		return result(req.ID)(l.Treasury.CreateAccount(ctx, p.AgentID, owner))
	case "accounts.get":
		var p idParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		return result(req.ID)(l.Treasury.GetAccount(ctx, p.ID))
	case "accounts.for_agent":
		var p agentParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		id, err := l.Treasury.GetAccountIDForAgent(ctx, p.AgentID)
		return result(req.ID)(map[string]any{"agent_id": p.AgentID, "account_id": id}, err)
	case "accounts.balance":
		var p idParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		balance, err := l.Treasury.GetBalance(ctx, p.ID)
		return result(req.ID)(map[string]any{"account_id": p.ID, "balance": balance}, err)
	case "accounts.payments":
		var p idParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		ids, err := l.Treasury.PaymentIDsForAccount(ctx, p.ID)
		return result(req.ID)(map[string]any{"account_id": p.ID, "payment_ids": ids}, err)
	case "accounts.fund":
		var p struct {
			ID     uint64        `json:"id"`
			Amount domain.Amount `json:"amount"`
		}
		if resp, ok := decodeAmountParams(req, &p); !ok {
			return resp
		}
		return result(req.ID)(l.Treasury.Fund(ctx, p.ID, p.Amount))
	case "accounts.withdraw":
		var p struct {
			ID     uint64         `json:"id"`
			To     common.Address `json:"to"`
			Amount domain.Amount  `json:"amount"`
		}
		if resp, ok := decodeAmountParams(req, &p); !ok {
			return resp
		}
		return result(req.ID)(l.Treasury.Withdraw(ctx, caller, p.ID, p.To, p.Amount))
	case "accounts.set_owner":
		var p struct {
			ID    uint64         `json:"id"`
			Owner common.Address `json:"owner"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		return result(req.ID)(l.Treasury.SetAccountOwner(ctx, caller, p.ID, p.Owner))
	case "accounts.deactivate":
		var p idParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		return result(req.ID)(l.Treasury.DeactivateAccount(ctx, caller, p.ID))
	case "accounts.reactivate":
		var p idParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		return result(req.ID)(l.Treasury.ReactivateAccount(ctx, caller, p.ID))

	case "payments.transfer":
		var p struct {
			FromAccountID uint64        `json:"from_account_id"`
			ToAccountID   uint64        `json:"to_account_id"`
			Amount        domain.Amount `json:"amount"`
			Purpose       string        `json:"purpose"`
			ReceiptHash   string        `json:"receipt_hash"`
		}
		if resp, ok := decodeAmountParams(req, &p); !ok {
			return resp
		}
		return result(req.ID)(l.Treasury.Transfer(ctx, application.TransferInput{
			Caller:        caller,
			FromAccountID: p.FromAccountID,
			ToAccountID:   p.ToAccountID,
			Amount:        p.Amount,
			Purpose:       p.Purpose,
			ReceiptHash:   p.ReceiptHash,
		}))
	case "payments.get":
		var p idParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		return result(req.ID)(l.Treasury.GetPayment(ctx, p.ID))

	case "operators.list":
		ops, err := l.Treasury.Operators(ctx)
		return result(req.ID)(map[string]any{"operators": ops}, err)
	case "operators.grant", "operators.revoke":
		var p struct {
			Address common.Address `json:"address"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		enabled := req.Method == "operators.grant"
		var err error
		if enabled {
			err = l.Treasury.GrantOperator(ctx, caller, p.Address)
		} else {
			err = l.Treasury.RevokeOperator(ctx, caller, p.Address)
		}
		return result(req.ID)(domain.OperatorState{Operator: p.Address, Enabled: enabled}, err)

	case "ledger.totals":
		return result(req.ID)(l.Treasury.Totals(ctx))
	case "events.list":
		var p struct {
			After uint64 `json:"after"`
			Limit int    `json:"limit"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		return result(req.ID)(l.ListEvents(ctx, p.After, p.Limit))
	default:
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32601, Message: "method not found"}, ID: req.ID}
	}
}

type idParams struct {
	ID uint64 `json:"id"`
}

type agentParams struct {
	AgentID uint64 `json:"agent_id"`
}

func (s *Server) authz(req request) (common.Address, response, bool) {
	var env envelope
	if !decodeParams(req.Params, &env) {
		return common.Address{}, invalidParams(req.ID), false
	}
	if err := s.ledger.AuthenticateGateway(env.Key); err != nil {
		return common.Address{}, response{JSONRPC: "2.0", Error: &rpcError{Code: 40100, Message: "unauthorized"}, ID: req.ID}, false
	}
	raw := strings.TrimSpace(env.Caller)
	if raw == "" {
		return common.Address{}, response{}, true
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, response{JSONRPC: "2.0", Error: &rpcError{Code: -32602, Message: "invalid caller address"}, ID: req.ID}, false
	}
	return common.HexToAddress(raw), response{}, true
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return true
	}
	return json.Unmarshal(raw, out) == nil
}

// decodeAmountParams reports malformed amounts as ledger validation errors
// rather than generic invalid params.
func decodeAmountParams(req request, out any) (response, bool) {
	if len(req.Params) == 0 {
		return response{}, true
	}
	if err := json.Unmarshal(req.Params, out); err != nil {
		if domain.ClassOf(err) == domain.ClassValidation {
			return appError(req.ID, err), false
		}
		return invalidParams(req.ID), false
	}
	return response{}, true
}

// result turns a service return pair into a response.
func result(id any) func(any, error) response {
	return func(v any, err error) response {
		if err != nil {
			return appError(id, err)
		}
		return response{JSONRPC: "2.0", Result: v, ID: id}
	}
}

func invalidParams(id any) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: -32602, Message: "invalid params"}, ID: id}
}

func appError(id any, err error) response {
	code := 40000
	switch domain.ClassOf(err) {
	case domain.ClassConflict:
		code = 40900
	case domain.ClassNotFound:
		code = 40400
	case domain.ClassAuthorization:
		code = 40300
	case domain.ClassResource:
		code = 42200
	case domain.ClassInternal:
		return internalError(id, err)
	}
	return response{JSONRPC: "2.0", Error: &rpcError{Code: code, Message: err.Error()}, ID: id}
}

func internalError(id any, err error) response {
	log.Printf("rpc internal error: %v", err)
	return response{JSONRPC: "2.0", Error: &rpcError{Code: 50000, Message: fmt.Sprintf("internal error: %v", err)}, ID: id}
}
