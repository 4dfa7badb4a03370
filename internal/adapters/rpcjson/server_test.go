package rpcjson

import (
	"encoding/json"
	"net"
	"path/filepath"
	"testing"

	"github.com/atvirokodosprendimai/agentledger/internal/adapters/db/memory"
	"github.com/atvirokodosprendimai/agentledger/internal/application"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const testKey = "rpc-secret"

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	admin = common.HexToAddress("0x000000000000000000000000000000000000ad01")

	anyone common.Address
)

type rpcConn struct {
	t    *testing.T
	enc  *json.Encoder
	dec  *json.Decoder
	next int
}

func dial(t *testing.T) *rpcConn {
	t.Helper()
	ledger, err := application.NewLedger(memory.New(), application.Config{Admin: admin, GatewayKey: testKey})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ledger.sock")
	srv, err := Start(path, ledger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &rpcConn{t: t, enc: json.NewEncoder(conn), dec: json.NewDecoder(conn)}
}

type rpcResult struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *rpcConn) call(method string, caller common.Address, params map[string]any) rpcResult {
	c.t.Helper()
	if params == nil {
		params = map[string]any{}
	}
	params["key"] = testKey
	if caller != (common.Address{}) {
		params["caller"] = caller.Hex()
	}
	c.next++
	require.NoError(c.t, c.enc.Encode(map[string]any{"jsonrpc": "2.0", "method": method, "params": params, "id": c.next}))
	var out rpcResult
	require.NoError(c.t, c.dec.Decode(&out))
	return out
}

func TestRequestValidation(t *testing.T) {
	c := dial(t)

	require.NoError(t, c.enc.Encode(map[string]any{"jsonrpc": "1.0", "method": "ledger.totals", "id": 1}))
	var out rpcResult
	require.NoError(t, c.dec.Decode(&out))
	require.Equal(t, -32600, out.Error.Code)

	require.NoError(t, c.enc.Encode(map[string]any{"jsonrpc": "2.0", "method": "ledger.totals", "params": map[string]any{"key": "wrong"}, "id": 2}))
	out = rpcResult{}
	require.NoError(t, c.dec.Decode(&out))
	require.Equal(t, 40100, out.Error.Code)

	res := c.call("ledger.nope", alice, nil)
	require.Equal(t, -32601, res.Error.Code)

	res = c.call("agents.get", alice, map[string]any{"id": "zero"})
	require.Equal(t, -32602, res.Error.Code)
}

func TestLedgerOverRPC(t *testing.T) {
	c := dial(t)

	res := c.call("agents.register", alice, map[string]any{"did": "did:a", "role": "buyer", "public_key": "0x04"})
	require.Nil(t, res.Error)
	res = c.call("agents.register", bob, map[string]any{"did": "did:b", "role": "seller", "public_key": "0x05"})
	require.Nil(t, res.Error)

	res = c.call("agents.register", bob, map[string]any{"did": "did:a", "role": "x", "public_key": "0x05"})
	require.Equal(t, 40900, res.Error.Code)

	res = c.call("agents.lookup", anyone, map[string]any{"did": "did:b"})
	require.Nil(t, res.Error)
	require.JSONEq(t, `{"id":1,"did":"did:b"}`, string(res.Result))

	require.Nil(t, c.call("accounts.create", alice, map[string]any{"agent_id": 0}).Error)
	require.Nil(t, c.call("accounts.create", bob, map[string]any{"agent_id": 1}).Error)
	require.Nil(t, c.call("accounts.fund", anyone, map[string]any{"id": 1, "amount": "50"}).Error)

	res = c.call("accounts.fund", anyone, map[string]any{"id": 1, "amount": "-1"})
	require.Equal(t, 40000, res.Error.Code)

	res = c.call("payments.transfer", alice, map[string]any{"from_account_id": 1, "to_account_id": 2, "amount": "20", "purpose": "svc"})
	require.Nil(t, res.Error)

	res = c.call("payments.transfer", alice, map[string]any{"from_account_id": 1, "to_account_id": 2, "amount": "31"})
	require.Equal(t, 42200, res.Error.Code)

	res = c.call("accounts.withdraw", bob, map[string]any{"id": 1, "to": bob.Hex(), "amount": "1"})
	require.Equal(t, 40300, res.Error.Code)

	res = c.call("accounts.balance", anyone, map[string]any{"id": 2})
	require.Nil(t, res.Error)
	require.JSONEq(t, `{"account_id":2,"balance":"20"}`, string(res.Result))

	res = c.call("payments.get", anyone, map[string]any{"id": 9})
	require.Equal(t, 40400, res.Error.Code)

	res = c.call("operators.grant", alice, map[string]any{"address": bob.Hex()})
	require.Equal(t, 40300, res.Error.Code)
	res = c.call("operators.grant", admin, map[string]any{"address": bob.Hex()})
	require.Nil(t, res.Error)

	res = c.call("events.list", anyone, map[string]any{"after": 0, "limit": 3})
	require.Nil(t, res.Error)
	var events []map[string]any
	require.NoError(t, json.Unmarshal(res.Result, &events))
	require.Len(t, events, 3)
	require.Equal(t, "agent.registered", events[0]["kind"])
}
