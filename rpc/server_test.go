package rpc

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Thorstarter/thorstarter-terra/core/rawdb"
	"github.com/Thorstarter/thorstarter-terra/core/types"
	"github.com/Thorstarter/thorstarter-terra/crypto"
	"github.com/Thorstarter/thorstarter-terra/host"
	"github.com/Thorstarter/thorstarter-terra/log"
	"github.com/Thorstarter/thorstarter-terra/metrics"
	"github.com/Thorstarter/thorstarter-terra/sale"
	"github.com/Thorstarter/thorstarter-terra/treasury"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRoot = "8e70ddd3cba3e4db4073ef0a775c71f601e2b2d5c517ed9718e7d4dd7a2c71a4"
	hexSale  = "0x00000000000000000000000000000000000000aa"
)

var testProof = []string{
	"90d9e60cde3d83e12292e7535173435d9e3162313b670e36d6e07f88b33a82da",
	"d8e28cfabf40072adc132ddeb2c34be910d9a563530fde22830ee9610fe693b7",
}

type rawResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	ID     json.RawMessage `json:"id"`
}

type testServer struct {
	*httptest.Server
	exec *host.Executor
	now  atomic.Uint64
	m    *metrics.Metrics
	rpc  *Server
}

func newTestServer(t *testing.T, codec types.AddressCodec, signed bool) *testServer {
	t.Helper()
	opts := sale.DefaultOptions()
	opts.Codec = codec
	c, err := sale.New(opts)
	require.NoError(t, err)
	oracle, err := treasury.NewStaticOracle(treasury.StaticOracleConfig{Rate: "0"})
	require.NoError(t, err)

	ts := &testServer{m: metrics.New(metrics.Config{Namespace: "test"})}
	saleAddr := "sale"
	if _, ok := codec.(types.HexCodec); ok {
		saleAddr = hexSale
	}
	ts.exec, err = host.NewExecutor(rawdb.NewMemoryDB(), c, host.Config{
		Address: saleAddr,
		Oracle:  oracle,
		Now:     ts.now.Load,
		Metrics: ts.m,
		Logger:  log.Discard(),
	})
	require.NoError(t, err)
	ts.rpc, err = NewServer(ts.exec, ts.exec.Feed(), Config{
		RequireSignatures: signed,
		Codec:             codec,
		Metrics:           ts.m,
		Logger:            log.Discard(),
	})
	require.NoError(t, err)
	ts.Server = httptest.NewServer(ts.rpc.Handler())
	t.Cleanup(func() {
		ts.rpc.Close()
		ts.Server.Close()
		ts.exec.Close()
	})
	return ts
}

func (ts *testServer) post(t *testing.T, body string) []byte {
	t.Helper()
	resp, err := http.Post(ts.URL, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return buf.Bytes()
}

func (ts *testServer) call(t *testing.T, method string, params ...any) rawResponse {
	t.Helper()
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
	require.NoError(t, err)
	var out rawResponse
	require.NoError(t, json.Unmarshal(ts.post(t, string(body)), &out))
	return out
}

func saleConfig(token, root string) types.SaleConfig {
	return types.SaleConfig{
		Token:          token,
		StartTime:      10,
		EndTime:        100,
		OfferingAmount: types.NewAmount(500_000_000),
		VestingInitial: types.NewAmount(100_000),
		VestingTime:    200,
		MerkleRoot:     root,
		Divisor:        types.DivisorTotal,
	}
}

func envelope(t *testing.T, sender string, funds types.Coins, msg any) Envelope {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	return Envelope{Sender: sender, Funds: funds, Msg: raw}
}

func depositMsg(allocation uint64, proof []string) sale.ExecuteMsg {
	return sale.ExecuteMsg{Deposit: &sale.DepositMsg{Allocation: types.NewAmount(allocation), Proof: proof}}
}

func TestSaleRoundTrip(t *testing.T) {
	ts := newTestServer(t, types.PlainCodec{}, false)
	cfg := saleConfig("token", testRoot)

	res := ts.call(t, "sale_instantiate", envelope(t, "owner", nil, sale.InstantiateMsg{Config: &cfg}))
	require.Nil(t, res.Error)

	ts.now.Store(40)
	res = ts.call(t, "sale_execute", envelope(t, "addr0001", types.Coins{types.NewCoin(50_000_000, "uusd")}, depositMsg(75_000_000, testProof)))
	require.Nil(t, res.Error)
	var ev host.Event
	require.NoError(t, json.Unmarshal(res.Result, &ev))
	assert.Equal(t, "deposit", ev.Action)
	assert.Equal(t, uint64(2), ev.Seq)

	res = ts.call(t, "sale_query", sale.QueryMsg{State: &struct{}{}})
	require.Nil(t, res.Error)
	var st sale.StateResponse
	require.NoError(t, json.Unmarshal(res.Result, &st))
	assert.Equal(t, "50000000", st.TotalAmount.String())
	assert.Equal(t, uint64(1), st.TotalUsers)

	res = ts.call(t, "sale_balance", "sale", "uusd")
	require.Nil(t, res.Error)
	assert.JSONEq(t, `"50000000"`, string(res.Result))

	res = ts.call(t, "sale_events", 2, 10)
	require.Nil(t, res.Error)
	var events []host.Event
	require.NoError(t, json.Unmarshal(res.Result, &events))
	require.Len(t, events, 1)
	assert.Equal(t, "deposit", events[0].Action)

	res = ts.call(t, "sale_now")
	require.Nil(t, res.Error)
	assert.JSONEq(t, "40", string(res.Result))
}

func TestDomainErrors(t *testing.T) {
	ts := newTestServer(t, types.PlainCodec{}, false)
	cfg := saleConfig("token", testRoot)
	require.Nil(t, ts.call(t, "sale_instantiate", envelope(t, "owner", nil, sale.InstantiateMsg{Config: &cfg})).Error)

	ts.now.Store(5)
	res := ts.call(t, "sale_execute", envelope(t, "addr0001", types.Coins{types.NewCoin(1, "uusd")}, depositMsg(75_000_000, testProof)))
	require.NotNil(t, res.Error)
	assert.Equal(t, ErrCodeDomain, res.Error.Code)
	assert.Equal(t, "DepositNotStarted", res.Error.Message)

	ts.now.Store(40)
	res = ts.call(t, "sale_execute", envelope(t, "addr0001", types.Coins{types.NewCoin(1, "uusd")}, depositMsg(75_000_001, testProof)))
	assert.Equal(t, "InvalidMerkleProof", res.Error.Message)

	res = ts.call(t, "sale_execute", envelope(t, "addr0002", nil, sale.ExecuteMsg{Collect: &struct{}{}}))
	assert.Equal(t, "Unauthorized", res.Error.Message)

	res = ts.call(t, "sale_execute", envelope(t, "addr0001", nil, map[string]any{"harvest": map[string]any{}, "collect": map[string]any{}}))
	assert.Equal(t, "InvalidMessage", res.Error.Message)

	res = ts.call(t, "sale_execute", envelope(t, "addr0001", nil, map[string]any{"steal": map[string]any{}}))
	assert.Equal(t, "InvalidMessage", res.Error.Message)

	res = ts.call(t, "sale_instantiate", envelope(t, "owner", nil, sale.InstantiateMsg{}))
	assert.Equal(t, "AlreadyInstantiated", res.Error.Message)

	res = ts.call(t, "sale_execute", envelope(t, "owner", nil, sale.ExecuteMsg{Migrate: &sale.MigrateMsg{NewContract: "x"}}))
	assert.Equal(t, "MigrationUnsupported", res.Error.Message)
}

func TestProtocolErrors(t *testing.T) {
	ts := newTestServer(t, types.PlainCodec{}, false)

	var out rawResponse
	require.NoError(t, json.Unmarshal(ts.post(t, `{not json`), &out))
	assert.Equal(t, ErrCodeParse, out.Error.Code)

	require.NoError(t, json.Unmarshal(ts.post(t, `{"jsonrpc":"1.0","id":1,"method":"sale_now"}`), &out))
	assert.Equal(t, ErrCodeInvalidRequest, out.Error.Code)

	// Methods the server does not serve share one metric label.
	require.NoError(t, json.Unmarshal(ts.post(t, `{"jsonrpc":"1.0","id":1,"method":"made_up_label"}`), &out))
	assert.Equal(t, ErrCodeInvalidRequest, out.Error.Code)
	assert.Equal(t, 2.0, testutil.ToFloat64(ts.m.RPCRequests.WithLabelValues("unknown", "invalid_request")))
	assert.False(t, hasMethodLabel(t, ts, "made_up_label"))
	assert.False(t, hasMethodLabel(t, ts, "sale_now"))

	res := ts.call(t, "eth_blockNumber")
	assert.Equal(t, ErrCodeMethodNotFound, res.Error.Code)

	res = ts.call(t, "sale_query")
	assert.Equal(t, ErrCodeInvalidParams, res.Error.Code)

	res = ts.call(t, "sale_balance", "Not An Address", "uusd")
	assert.Equal(t, ErrCodeInvalidParams, res.Error.Code)

	res = ts.call(t, "sale_query", sale.QueryMsg{State: &struct{}{}})
	assert.Equal(t, ErrCodeDomain, res.Error.Code)
	assert.Equal(t, "NotInstantiated", res.Error.Message)

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestBatch(t *testing.T) {
	ts := newTestServer(t, types.PlainCodec{}, false)
	ts.now.Store(7)
	var out []rawResponse
	require.NoError(t, json.Unmarshal(ts.post(t, `[
		{"jsonrpc":"2.0","id":1,"method":"sale_now","params":[]},
		{"jsonrpc":"2.0","id":2,"method":"nope","params":[]}
	]`), &out))
	require.Len(t, out, 2)
	assert.JSONEq(t, "7", string(out[0].Result))
	assert.JSONEq(t, "2", string(out[1].ID))
	assert.Equal(t, ErrCodeMethodNotFound, out[1].Error.Code)

	var single rawResponse
	require.NoError(t, json.Unmarshal(ts.post(t, `[]`), &single))
	assert.Equal(t, ErrCodeInvalidRequest, single.Error.Code)
}

func signed(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, funds types.Coins, msg any) Envelope {
	t.Helper()
	env := envelope(t, "", funds, msg)
	env.Nonce = nonce
	require.NoError(t, env.Sign(key, types.HexCodec{}, hexSale))
	return env
}

func TestSignedEnvelopes(t *testing.T) {
	ts := newTestServer(t, types.HexCodec{}, true)
	ownerKey, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	userKey, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	user, err := types.HexCodec{}.FromBytes(gethcrypto.PubkeyToAddress(userKey.PublicKey).Bytes())
	require.NoError(t, err)

	leaf := crypto.LeafHash(user, types.NewAmount(1_000))
	tree, err := crypto.NewMerkleTree([]types.Hash{leaf, crypto.LeafHash("0x00000000000000000000000000000000000000bb", types.NewAmount(5))})
	require.NoError(t, err)
	proof, err := tree.ProofHex(leaf)
	require.NoError(t, err)

	cfg := saleConfig("0x00000000000000000000000000000000000000cc", tree.Root().Hex())
	res := ts.call(t, "sale_instantiate", signed(t, ownerKey, 0, nil, sale.InstantiateMsg{Config: &cfg}))
	require.Nil(t, res.Error)

	ts.now.Store(40)
	unsigned := envelope(t, user, types.Coins{types.NewCoin(10, "uusd")}, depositMsg(1_000, proof))
	res = ts.call(t, "sale_execute", unsigned)
	require.NotNil(t, res.Error)
	assert.Equal(t, "InvalidSignature", res.Error.Message)

	env := signed(t, userKey, 0, types.Coins{types.NewCoin(10, "uusd")}, depositMsg(1_000, proof))
	tampered := env
	tampered.Funds = types.Coins{types.NewCoin(11, "uusd")}
	res = ts.call(t, "sale_execute", tampered)
	assert.Equal(t, "InvalidSignature", res.Error.Message)

	impostor := env
	impostor.Sender = "0x00000000000000000000000000000000000000bb"
	res = ts.call(t, "sale_execute", impostor)
	assert.Equal(t, "InvalidSignature", res.Error.Message)

	otherSale := env
	require.NoError(t, otherSale.Sign(userKey, types.HexCodec{}, "0x00000000000000000000000000000000000000ab"))
	res = ts.call(t, "sale_execute", otherSale)
	assert.Equal(t, "InvalidSignature", res.Error.Message)

	res = ts.call(t, "sale_execute", env)
	require.Nil(t, res.Error, "%+v", res.Error)

	res = ts.call(t, "sale_query", sale.QueryMsg{UserState: &sale.UserStateQuery{User: user, Now: 40}})
	require.Nil(t, res.Error)
	var u sale.UserStateResponse
	require.NoError(t, json.Unmarshal(res.Result, &u))
	assert.Equal(t, "10", u.Amount.String())
}

func TestSignedReplayRejected(t *testing.T) {
	ts := newTestServer(t, types.HexCodec{}, true)
	ownerKey, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	owner, err := types.HexCodec{}.FromBytes(gethcrypto.PubkeyToAddress(ownerKey.PublicKey).Bytes())
	require.NoError(t, err)

	nonce := func() uint64 {
		t.Helper()
		res := ts.call(t, "sale_nonce", owner)
		require.Nil(t, res.Error)
		var n uint64
		require.NoError(t, json.Unmarshal(res.Result, &n))
		return n
	}
	require.Equal(t, uint64(0), nonce())

	open := saleConfig("0x00000000000000000000000000000000000000cc", testRoot)
	require.Nil(t, ts.call(t, "sale_instantiate", signed(t, ownerKey, 0, nil, sale.InstantiateMsg{Config: &open})).Error)

	final := open
	final.Finalized = true
	reopen := signed(t, ownerKey, 1, nil, sale.ExecuteMsg{Configure: &open})
	require.Nil(t, ts.call(t, "sale_execute", reopen).Error)
	require.Nil(t, ts.call(t, "sale_execute", signed(t, ownerKey, 2, nil, sale.ExecuteMsg{Configure: &final})).Error)
	assert.Equal(t, uint64(3), nonce())

	res := ts.call(t, "sale_execute", reopen)
	require.NotNil(t, res.Error)
	assert.Equal(t, ErrCodeDomain, res.Error.Code)
	assert.Equal(t, "InvalidNonce", res.Error.Message)

	res = ts.call(t, "sale_query", sale.QueryMsg{State: &struct{}{}})
	require.Nil(t, res.Error)
	var st sale.StateResponse
	require.NoError(t, json.Unmarshal(res.Result, &st))
	assert.True(t, st.Finalized)

	// A skipped nonce is rejected too.
	res = ts.call(t, "sale_execute", signed(t, ownerKey, 5, nil, sale.ExecuteMsg{Collect: &struct{}{}}))
	assert.Equal(t, "InvalidNonce", res.Error.Message)
	assert.Equal(t, uint64(3), nonce())

	// A request the sale rejects still uses up its nonce.
	collect := signed(t, ownerKey, 3, nil, sale.ExecuteMsg{Collect: &struct{}{}})
	res = ts.call(t, "sale_execute", collect)
	assert.Equal(t, "NoZeroAmount", res.Error.Message)
	assert.Equal(t, uint64(4), nonce())
	res = ts.call(t, "sale_execute", collect)
	assert.Equal(t, "InvalidNonce", res.Error.Message)

	res = ts.call(t, "sale_nonce", "nobody")
	assert.Equal(t, ErrCodeInvalidParams, res.Error.Code)
}

func TestSignedRequiresEncoder(t *testing.T) {
	_, err := NewServer(nil, host.NewFeed(1), Config{RequireSignatures: true, Codec: types.PlainCodec{}})
	require.Error(t, err)
}

func TestSigningPayloadIgnoresWhitespace(t *testing.T) {
	a := Envelope{Sender: "addr0001", Msg: json.RawMessage(`{"harvest":{}}`)}
	b := Envelope{Sender: "addr0001", Msg: json.RawMessage("{ \"harvest\" : { } }\n")}
	pa, err := a.SigningPayload("sale")
	require.NoError(t, err)
	pb, err := b.SigningPayload("sale")
	require.NoError(t, err)
	assert.Equal(t, string(pa), string(pb))
	assert.Equal(t, `{"sale":"sale","sender":"addr0001","nonce":0,"funds":[],"msg":{"harvest":{}}}`, string(pa))
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t, types.PlainCodec{}, false)
	cfg := saleConfig("token", testRoot)
	require.Nil(t, ts.call(t, "sale_instantiate", envelope(t, "owner", nil, sale.InstantiateMsg{Config: &cfg})).Error)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?actions=deposit"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return ts.exec.Feed().Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	ts.now.Store(40)
	require.Nil(t, ts.call(t, "sale_execute", envelope(t, "addr0001", types.Coins{types.NewCoin(5, "uusd")}, depositMsg(75_000_000, testProof))).Error)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev host.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "deposit", ev.Action)
	assert.Equal(t, uint64(2), ev.Seq)
	assert.Equal(t, 1.0, gaugeValue(t, ts))
}

func hasMethodLabel(t *testing.T, ts *testServer, method string) bool {
	t.Helper()
	mfs, err := ts.m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "method" && lp.GetValue() == method {
					return true
				}
			}
		}
	}
	return false
}

func gaugeValue(t *testing.T, ts *testServer) float64 {
	t.Helper()
	mfs, err := ts.m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "test_rpc_ws_clients" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("ws_clients gauge not registered")
	return 0
}
