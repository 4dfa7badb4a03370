package main

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

func useRPC(cfg cliConfig) bool {
	return cfg.Transport == "uds"
}

func idPath(prefix string, id uint64, suffix string) string {
	return prefix + "/" + strconv.FormatUint(id, 10) + suffix
}

func doAgentRegister(ctx context.Context, cfg cliConfig, did, role, publicKey string, out any) error {
	in := map[string]any{"did": did, "role": role, "public_key": publicKey}
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "agents.register", cfg.rpcParams(in), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodPost, "/api/agents", in, out)
}

func doAgentGet(ctx context.Context, cfg cliConfig, id uint64, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "agents.get", cfg.rpcParams(map[string]any{"id": id}), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodGet, idPath("/api/agents", id, ""), nil, out)
}

func doAgentLookup(ctx context.Context, cfg cliConfig, did string, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "agents.lookup", cfg.rpcParams(map[string]any{"did": did}), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodGet, "/api/agents/lookup?did="+url.QueryEscape(did), nil, out)
}

func doAgentRegistered(ctx context.Context, cfg cliConfig, did string, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "agents.is_registered", cfg.rpcParams(map[string]any{"did": did}), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodGet, "/api/agents/registered?did="+url.QueryEscape(did), nil, out)
}

// doAgentSetActive flips an identity's active flag.
func doAgentSetActive(ctx context.Context, cfg cliConfig, id uint64, active bool, out any) error {
	method, suffix := "agents.deactivate", "/deactivate"
	if active {
		method, suffix = "agents.reactivate", "/reactivate"
	}
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, method, cfg.rpcParams(map[string]any{"id": id}), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodPost, idPath("/api/agents", id, suffix), nil, out)
}

func doAgentTransfer(ctx context.Context, cfg cliConfig, id uint64, newOwner string, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "agents.transfer", cfg.rpcParams(map[string]any{"id": id, "owner": newOwner}), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodPost, idPath("/api/agents", id, "/transfer"), map[string]any{"owner": newOwner}, out)
}

func doFeedbackSubmit(ctx context.Context, cfg cliConfig, in map[string]any, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "feedback.submit", cfg.rpcParams(in), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodPost, "/api/feedback", in, out)
}

func doFeedbackGet(ctx context.Context, cfg cliConfig, id uint64, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "feedback.get", cfg.rpcParams(map[string]any{"id": id}), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodGet, idPath("/api/feedback", id, ""), nil, out)
}

func doFeedbackList(ctx context.Context, cfg cliConfig, agentID uint64, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "feedback.list", cfg.rpcParams(map[string]any{"agent_id": agentID}), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodGet, idPath("/api/agents", agentID, "/feedback"), nil, out)
}

func doReputationSummary(ctx context.Context, cfg cliConfig, agentID uint64, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "reputation.summary", cfg.rpcParams(map[string]any{"agent_id": agentID}), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodGet, idPath("/api/agents", agentID, "/reputation"), nil, out)
}

func doAccountCreate(ctx context.Context, cfg cliConfig, agentID uint64, owner string, out any) error {
	in := map[string]any{"agent_id": agentID}
	if owner != "" {
		in["owner"] = owner
	}
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "accounts.create", cfg.rpcParams(in), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodPost, "/api/accounts", in, out)
}

func doAccountGet(ctx context.Context, cfg cliConfig, id uint64, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "accounts.get", cfg.rpcParams(map[string]any{"id": id}), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodGet, idPath("/api/accounts", id, ""), nil, out)
}

func doAccountForAgent(ctx context.Context, cfg cliConfig, agentID uint64, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "accounts.for_agent", cfg.rpcParams(map[string]any{"agent_id": agentID}), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodGet, idPath("/api/agents", agentID, "/account"), nil, out)
}

func doAccountBalance(ctx context.Context, cfg cliConfig, id uint64, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "accounts.balance", cfg.rpcParams(map[string]any{"id": id}), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodGet, idPath("/api/accounts", id, "/balance"), nil, out)
}

func doAccountPayments(ctx context.Context, cfg cliConfig, id uint64, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "accounts.payments", cfg.rpcParams(map[string]any{"id": id}), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodGet, idPath("/api/accounts", id, "/payments"), nil, out)
}

func doAccountFund(ctx context.Context, cfg cliConfig, id uint64, amount string, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "accounts.fund", cfg.rpcParams(map[string]any{"id": id, "amount": amount}), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodPost, idPath("/api/accounts", id, "/fund"), map[string]any{"amount": amount}, out)
}

func doAccountWithdraw(ctx context.Context, cfg cliConfig, id uint64, to, amount string, out any) error {
	in := map[string]any{"to": to, "amount": amount}
	if useRPC(cfg) {
		in["id"] = id
		return newRPCClient(cfg.Socket).call(ctx, "accounts.withdraw", cfg.rpcParams(in), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodPost, idPath("/api/accounts", id, "/withdraw"), in, out)
}

func doAccountSetOwner(ctx context.Context, cfg cliConfig, id uint64, owner string, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "accounts.set_owner", cfg.rpcParams(map[string]any{"id": id, "owner": owner}), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodPost, idPath("/api/accounts", id, "/owner"), map[string]any{"owner": owner}, out)
}

func doAccountSetActive(ctx context.Context, cfg cliConfig, id uint64, active bool, out any) error {
	method, suffix := "accounts.deactivate", "/deactivate"
	if active {
		method, suffix = "accounts.reactivate", "/reactivate"
	}
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, method, cfg.rpcParams(map[string]any{"id": id}), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodPost, idPath("/api/accounts", id, suffix), nil, out)
}

func doTransfer(ctx context.Context, cfg cliConfig, in map[string]any, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "payments.transfer", cfg.rpcParams(in), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodPost, "/api/payments", in, out)
}

func doPaymentGet(ctx context.Context, cfg cliConfig, id uint64, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "payments.get", cfg.rpcParams(map[string]any{"id": id}), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodGet, idPath("/api/payments", id, ""), nil, out)
}

func doOperatorsList(ctx context.Context, cfg cliConfig, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "operators.list", cfg.rpcParams(nil), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodGet, "/api/treasury/operators", nil, out)
}

func doOperatorSet(ctx context.Context, cfg cliConfig, address string, enabled bool, out any) error {
	if useRPC(cfg) {
		method := "operators.revoke"
		if enabled {
			method = "operators.grant"
		}
		return newRPCClient(cfg.Socket).call(ctx, method, cfg.rpcParams(map[string]any{"address": address}), out)
	}
	client := newAPIClient(cfg)
	if enabled {
		return client.request(ctx, http.MethodPost, "/api/treasury/operators", map[string]any{"address": address}, out)
	}
	return client.request(ctx, http.MethodDelete, "/api/treasury/operators/"+url.PathEscape(address), nil, out)
}

func doTotals(ctx context.Context, cfg cliConfig, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "ledger.totals", cfg.rpcParams(nil), out)
	}
	return newAPIClient(cfg).request(ctx, http.MethodGet, "/api/treasury/totals", nil, out)
}

func doEventsList(ctx context.Context, cfg cliConfig, after uint64, limit int, out any) error {
	if useRPC(cfg) {
		return newRPCClient(cfg.Socket).call(ctx, "events.list", cfg.rpcParams(map[string]any{"after": after, "limit": limit}), out)
	}
	q := url.Values{}
	q.Set("after", strconv.FormatUint(after, 10))
	q.Set("limit", strconv.Itoa(limit))
	return newAPIClient(cfg).request(ctx, http.MethodGet, "/api/events?"+q.Encode(), nil, out)
}
