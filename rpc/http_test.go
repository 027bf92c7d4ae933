package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"creditlend/crypto"
	"creditlend/native/common"
	"creditlend/native/credit"
	"creditlend/native/lending"
	"creditlend/native/pricing"
	"creditlend/native/vault"
	"creditlend/storage"
)

const testToken = "test-token"

func rpcAddr(seed byte) crypto.Address {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = seed
	}
	return crypto.NewAddress(crypto.UserPrefix, raw)
}

type serverEnv struct {
	server *httptest.Server
	admin  crypto.Address
	user   crypto.Address
}

func newServerEnv(t *testing.T) *serverEnv {
	t.Helper()
	kv := storage.NewKV(storage.NewMemDB())
	allow := credit.NewAllowList()
	pauses := common.NewPauseRegistry()
	accumulator := credit.NewAccumulator(credit.NewStore(kv), allow)
	accumulator.SetPauses(pauses)
	scores := credit.NewScoreEngine(credit.NewStore(kv))

	oracle := pricing.NewManualOracle(0)
	if err := oracle.SetPrice("USDX", big.NewRat(1, 1), "test"); err != nil {
		t.Fatalf("set price: %v", err)
	}

	admin := rpcAddr(0xAD)
	module := crypto.NewAddress(crypto.ModulePrefix, bytes.Repeat([]byte{0x01}, 20))
	engine := lending.NewEngine(module, admin, lending.RiskParameters{LiquidationBonusBps: 1000})
	engine.SetState(lending.NewStore(kv))
	engine.SetOracle(oracle)
	engine.SetScoreSource(scores)
	engine.SetCreditRecorder(accumulator)
	engine.SetPauses(pauses)
	allow.Grant(module)

	if err := engine.SetAssetSupported(admin, "USDX", true); err != nil {
		t.Fatalf("support asset: %v", err)
	}

	vaultTreasury := crypto.NewAddress(crypto.ModulePrefix, bytes.Repeat([]byte{0x02}, 20))
	usdxVault := vault.New("USDX")
	usdxVault.SetFunds(engine, vaultTreasury)
	usdxVault.SetScoreSource(scores)
	usdxVault.SetSavingsReporter(accumulator)
	allow.Grant(vaultTreasury)
	vaults := map[string]*vault.Vault{"USDX": usdxVault}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := NewServer(logger, engine, scores, allow, oracle, pauses, vaults, admin, testToken)

	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return &serverEnv{server: ts, admin: admin, user: rpcAddr(0x02)}
}

func (env *serverEnv) call(t *testing.T, token, method string, params interface{}) (*http.Response, RPCResponse) {
	t.Helper()
	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		body["params"] = []interface{}{params}
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, env.server.URL, bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var decoded RPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func (env *serverEnv) mustCall(t *testing.T, token, method string, params interface{}) RPCResponse {
	t.Helper()
	resp, decoded := env.call(t, token, method, params)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s: unexpected status %d (error %+v)", method, resp.StatusCode, decoded.Error)
	}
	if decoded.Error != nil {
		t.Fatalf("%s: unexpected error %+v", method, decoded.Error)
	}
	return decoded
}

func TestHealthEndpoint(t *testing.T) {
	env := newServerEnv(t)
	resp, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMutatingMethodsRequireBearerToken(t *testing.T) {
	env := newServerEnv(t)
	params := map[string]string{"from": env.user.String(), "asset": "USDX", "amount": "100"}

	resp, decoded := env.call(t, "", "lend_depositCollateral", params)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if decoded.Error == nil || decoded.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized code, got %+v", decoded.Error)
	}

	resp, _ = env.call(t, "wrong-token", "lend_depositCollateral", params)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.StatusCode)
	}

	resp, _ = env.call(t, "", "admin_pause", map[string]string{"module": "lending"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for admin method, got %d", resp.StatusCode)
	}

	resp, _ = env.call(t, "", "vault_deposit", params)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for vault deposit, got %d", resp.StatusCode)
	}
}

func TestReadMethodsOpenWithoutToken(t *testing.T) {
	env := newServerEnv(t)
	decoded := env.mustCall(t, "", "credit_getScore", map[string]string{"address": env.user.String()})

	var result struct {
		Score uint64 `json:"score"`
	}
	raw, _ := json.Marshal(decoded.Result)
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Score != 396 {
		t.Fatalf("expected fresh-profile score 396, got %d", result.Score)
	}
}

func TestDepositBorrowFlowOverRPC(t *testing.T) {
	env := newServerEnv(t)

	env.mustCall(t, testToken, "admin_mint", map[string]string{
		"to": env.user.String(), "asset": "USDX", "amount": "10000",
	})
	env.mustCall(t, testToken, "lend_depositCollateral", map[string]string{
		"from": env.user.String(), "asset": "USDX", "amount": "10000",
	})

	decoded := env.mustCall(t, "", "lend_getPosition", map[string]string{
		"address": env.user.String(), "asset": "USDX",
	})
	raw, _ := json.Marshal(decoded.Result)
	var result struct {
		Position struct {
			CollateralAmount   *big.Int `json:"collateralAmount"`
			CollateralRatioBps uint64   `json:"collateralRatioBps"`
		} `json:"position"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Position.CollateralAmount.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("expected collateral 10000, got %s", result.Position.CollateralAmount)
	}
	// A fresh profile scores 396, which lands in the most conservative tier.
	if result.Position.CollateralRatioBps != 20_000 {
		t.Fatalf("expected base ratio 20000, got %d", result.Position.CollateralRatioBps)
	}
}

func TestBorrowLimitErrorCarriesDetail(t *testing.T) {
	env := newServerEnv(t)

	funder := rpcAddr(0x03)
	env.mustCall(t, testToken, "admin_mint", map[string]string{
		"to": funder.String(), "asset": "USDX", "amount": "20000",
	})
	env.mustCall(t, testToken, "lend_fundReserve", map[string]string{
		"from": funder.String(), "asset": "USDX", "amount": "20000",
	})
	env.mustCall(t, testToken, "admin_mint", map[string]string{
		"to": env.user.String(), "asset": "USDX", "amount": "10000",
	})
	env.mustCall(t, testToken, "lend_depositCollateral", map[string]string{
		"from": env.user.String(), "asset": "USDX", "amount": "10000",
	})

	// At the 200% base tier, 10000 of collateral backs at most 5000 of debt.
	resp, decoded := env.call(t, testToken, "lend_borrow", map[string]string{
		"from": env.user.String(), "asset": "USDX", "amount": "6000",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if decoded.Error == nil || decoded.Error.Code != codeCapacityViolation {
		t.Fatalf("expected capacity violation, got %+v", decoded.Error)
	}
	raw, _ := json.Marshal(decoded.Error.Data)
	var detail limitDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.Available != "5000" {
		t.Fatalf("expected available 5000, got %q", detail.Available)
	}
	if detail.Requested != "6000" {
		t.Fatalf("expected requested 6000, got %q", detail.Requested)
	}
}

func TestAdminPauseOverRPC(t *testing.T) {
	env := newServerEnv(t)
	env.mustCall(t, testToken, "admin_pause", map[string]string{"module": "lending"})

	env.mustCall(t, testToken, "admin_mint", map[string]string{
		"to": env.user.String(), "asset": "USDX", "amount": "100",
	})
	resp, decoded := env.call(t, testToken, "lend_depositCollateral", map[string]string{
		"from": env.user.String(), "asset": "USDX", "amount": "100",
	})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while paused, got %d", resp.StatusCode)
	}
	if decoded.Error == nil || decoded.Error.Code != codeModulePaused {
		t.Fatalf("expected paused code, got %+v", decoded.Error)
	}

	env.mustCall(t, testToken, "admin_resume", map[string]string{"module": "lending"})
	env.mustCall(t, testToken, "lend_depositCollateral", map[string]string{
		"from": env.user.String(), "asset": "USDX", "amount": "100",
	})
}

func TestUnknownMethodRejected(t *testing.T) {
	env := newServerEnv(t)
	resp, decoded := env.call(t, "", "lend_doesNotExist", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if decoded.Error == nil || decoded.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", decoded.Error)
	}
}

func TestMalformedJSONRejected(t *testing.T) {
	env := newServerEnv(t)
	resp, err := http.Post(env.server.URL, "application/json", bytes.NewBufferString("{nope"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var decoded RPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Error == nil || decoded.Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %+v", decoded.Error)
	}
}

func TestInvalidAddressParamRejected(t *testing.T) {
	env := newServerEnv(t)
	resp, decoded := env.call(t, "", "credit_getScore", map[string]string{"address": "garbage"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if decoded.Error == nil || decoded.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got %+v", decoded.Error)
	}
}

func TestGrantedScorerAffectsScore(t *testing.T) {
	env := newServerEnv(t)
	scorer := env.admin

	env.mustCall(t, testToken, "admin_grantScorer", map[string]string{"address": scorer.String()})

	// The admin, once granted, can seed a profile through engine-side flows:
	// fund the reserve so the liquidity sub-score kicks in.
	env.mustCall(t, testToken, "admin_mint", map[string]string{
		"to": env.user.String(), "asset": "USDX", "amount": "1000",
	})
	env.mustCall(t, testToken, "lend_fundReserve", map[string]string{
		"from": env.user.String(), "asset": "USDX", "amount": "1000",
	})

	decoded := env.mustCall(t, "", "credit_getBreakdown", map[string]string{"address": env.user.String()})
	raw, _ := json.Marshal(decoded.Result)
	var result struct {
		Breakdown struct {
			Liquidity uint64 `json:"liquidity"`
			Total     uint64 `json:"total"`
		} `json:"breakdown"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Breakdown.Liquidity != 100 {
		t.Fatalf("expected liquidity sub-score 100 after funding, got %d", result.Breakdown.Liquidity)
	}
	if result.Breakdown.Total <= 396 {
		t.Fatalf("expected total above the empty-profile score, got %d", result.Breakdown.Total)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	env := newServerEnv(t)
	resp, err := http.Get(env.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.Contains(body, []byte("lending_liquidations_total")) {
		t.Fatalf("expected lending collectors in metrics output")
	}
}

func TestVaultFlowOverRPC(t *testing.T) {
	env := newServerEnv(t)

	// A fresh profile scores 396: boost = 96 * 2000 / 550.
	decoded := env.mustCall(t, "", "vault_getBoost", map[string]string{
		"address": env.user.String(), "asset": "USDX",
	})
	var boost vaultBoostResult
	raw, _ := json.Marshal(decoded.Result)
	if err := json.Unmarshal(raw, &boost); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if boost.BoostBps != 349 {
		t.Fatalf("expected boost 349 bps, got %d", boost.BoostBps)
	}

	env.mustCall(t, testToken, "admin_mint", map[string]string{
		"to": env.user.String(), "asset": "USDX", "amount": "1000",
	})
	decoded = env.mustCall(t, testToken, "vault_deposit", map[string]string{
		"from": env.user.String(), "asset": "USDX", "amount": "1000",
	})
	var deposit struct {
		SharesMinted string `json:"sharesMinted"`
	}
	raw, _ = json.Marshal(decoded.Result)
	if err := json.Unmarshal(raw, &deposit); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if deposit.SharesMinted != "1000" {
		t.Fatalf("expected 1000 shares minted, got %q", deposit.SharesMinted)
	}

	// Yield from the administrator raises the exchange rate for all holders.
	env.mustCall(t, testToken, "admin_mint", map[string]string{
		"to": env.admin.String(), "asset": "USDX", "amount": "100",
	})
	env.mustCall(t, testToken, "admin_addYield", map[string]string{
		"asset": "USDX", "amount": "100",
	})

	decoded = env.mustCall(t, "", "vault_getBalance", map[string]string{
		"address": env.user.String(), "asset": "USDX",
	})
	var balance vaultBalanceResult
	raw, _ = json.Marshal(decoded.Result)
	if err := json.Unmarshal(raw, &balance); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if balance.Shares != "1000" || balance.Assets != "1100" {
		t.Fatalf("expected 1000 shares worth 1100, got %s/%s", balance.Shares, balance.Assets)
	}

	decoded = env.mustCall(t, testToken, "vault_withdraw", map[string]string{
		"from": env.user.String(), "asset": "USDX", "shares": "1000",
	})
	var withdraw struct {
		AssetsReturned string `json:"assetsReturned"`
	}
	raw, _ = json.Marshal(decoded.Result)
	if err := json.Unmarshal(raw, &withdraw); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if withdraw.AssetsReturned != "1100" {
		t.Fatalf("expected 1100 assets returned, got %q", withdraw.AssetsReturned)
	}

	resp, decoded := env.call(t, testToken, "vault_withdraw", map[string]string{
		"from": env.user.String(), "asset": "USDX", "shares": "1",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 after full withdrawal, got %d", resp.StatusCode)
	}
	if decoded.Error == nil || decoded.Error.Code != codeCapacityViolation {
		t.Fatalf("expected capacity violation, got %+v", decoded.Error)
	}

	// Vault deposits feed the depositor's savings history: the profile
	// tracks the lifetime deposit total even after a full withdrawal.
	decoded = env.mustCall(t, "", "credit_getBreakdown", map[string]string{
		"address": env.user.String(),
	})
	var result struct {
		Breakdown credit.Breakdown `json:"breakdown"`
	}
	raw, _ = json.Marshal(decoded.Result)
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Breakdown.Total < 396 {
		t.Fatalf("expected at least the fresh-profile score, got %d", result.Breakdown.Total)
	}
}
