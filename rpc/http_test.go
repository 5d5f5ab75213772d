package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"crossfill/core/state"
	"crossfill/core/types"
	"crossfill/native/swap"
	"crossfill/storage"
)

var (
	testAdmin = "0x" + repeatByte(0xAA)
	testMaker = "0x" + repeatByte(0x01)
	testTaker = "0x" + repeatByte(0x02)
)

func repeatByte(b byte) string {
	return fmt.Sprintf("%040x", new(big.Int).SetBytes(bytes.Repeat([]byte{b}, 20)))
}

func newTestServer(t *testing.T) (*Server, *state.Manager) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())

	var admin, maker, taker [20]byte
	for i := range admin {
		admin[i], maker[i], taker[i] = 0xAA, 0x01, 0x02
	}

	engine := swap.NewEngine()
	engine.SetState(manager)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	engine.SetHeightFunc(func() uint64 { return 1_000 })
	if err := engine.Initialize(swap.DefaultProtocolState(admin)); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	for _, addr := range [][20]byte{maker, taker} {
		if err := manager.PutAccount(addr[:], &types.Account{Balance: big.NewInt(1_000_000)}); err != nil {
			t.Fatalf("fund account: %v", err)
		}
	}
	return NewServer(engine, nil, 10_000, 1_000), manager
}

func post(t *testing.T, handler http.Handler, body string, headers map[string]string) (*httptest.ResponseRecorder, *RPCResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.RemoteAddr = "192.0.2.1:54321"
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	resp := &RPCResponse{}
	if err := json.Unmarshal(recorder.Body.Bytes(), resp); err != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return recorder, resp
}

func createOrderBody(id int) string {
	params := fmt.Sprintf(`{
		"maker": %q,
		"deposit": "1000",
		"totalAmount": "1000",
		"minFillAmount": "10",
		"hashlock": "0x%064x",
		"timelock": 2000,
		"swapId": "0x%064x",
		"sourceChain": 1,
		"destChain": 2,
		"destAmountPerUnit": "1000000000000",
		"allowPartialFills": true,
		"maxFills": 10
	}`, testMaker, 0x11, 0x22)
	return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"swap_createOrder","params":[%s]}`, id, params)
}

func TestMethodNotFound(t *testing.T) {
	server, _ := newTestServer(t)
	rec, resp := post(t, server.Handler(), `{"jsonrpc":"2.0","id":1,"method":"swap_unknown","params":[]}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("error: %+v", resp.Error)
	}
}

func TestRejectsNonPost(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status: got %d, want %d", recorder.Code, http.StatusMethodNotAllowed)
	}
}

func TestCreateOrderOverRPC(t *testing.T) {
	server, _ := newTestServer(t)
	rec, resp := post(t, server.Handler(), createOrderBody(1), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result shape: %T", resp.Result)
	}
	orderID, ok := result["orderId"].(string)
	if !ok || len(orderID) != 66 {
		t.Fatalf("order id: %v", result["orderId"])
	}

	// The order is immediately readable.
	getBody := fmt.Sprintf(`{"jsonrpc":"2.0","id":2,"method":"swap_getOrder","params":[{"id":%q}]}`, orderID)
	rec, resp = post(t, server.Handler(), getBody, nil)
	if rec.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("get order: status %d, error %+v", rec.Code, resp.Error)
	}
	view, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("view shape: %T", resp.Result)
	}
	if view["totalAmount"] != "997" || view["fee"] != "3" {
		t.Fatalf("fee split over RPC: %v", view)
	}
}

func TestEngineErrorMapping(t *testing.T) {
	server, _ := newTestServer(t)
	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"swap_getOrder","params":[{"id":"0x%064x"}]}`, 0xFF)
	rec, resp := post(t, server.Handler(), body, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
	if resp.Error == nil || resp.Error.Code != codeSwapNotFound {
		t.Fatalf("error: %+v", resp.Error)
	}
}

func TestInvalidParamsRejected(t *testing.T) {
	server, _ := newTestServer(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"swap_getOrder","params":[{"id":"not-hex"}]}`
	rec, resp := post(t, server.Handler(), body, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("error: %+v", resp.Error)
	}
}

func TestBearerTokenAuth(t *testing.T) {
	t.Setenv(AuthTokenEnv, "sekrit")
	server, _ := newTestServer(t)

	rec, resp := post(t, server.Handler(), createOrderBody(1), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("error: %+v", resp.Error)
	}

	rec, _ = post(t, server.Handler(), createOrderBody(2), map[string]string{"Authorization": "Bearer wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	rec, resp = post(t, server.Handler(), createOrderBody(3), map[string]string{"Authorization": "Bearer sekrit"})
	if rec.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("valid token: status %d, error %+v", rec.Code, resp.Error)
	}

	// Reads stay open.
	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":4,"method":"swap_remaining","params":[{"id":"0x%064x"}]}`, 0x01)
	rec, resp = post(t, server.Handler(), body, nil)
	if rec.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("read without token: status %d, error %+v", rec.Code, resp.Error)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	server, _ := newTestServer(t)
	server.limiter = newRateLimiter(60, 2)

	handler := server.Handler()
	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"swap_remaining","params":[{"id":"0x%064x"}]}`, 0x01)
	for i := 0; i < 2; i++ {
		rec, _ := post(t, handler, body, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d inside burst: status %d", i, rec.Code)
		}
	}
	rec, resp := post(t, handler, body, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if resp.Error == nil || resp.Error.Code != codeRateLimited {
		t.Fatalf("error: %+v", resp.Error)
	}
}

func TestFillAndWithdrawOverRPC(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	secret := fmt.Sprintf("0x%064x", 0x5E)
	hashlock := swap.HashSecret(func() [32]byte {
		var s [32]byte
		s[31] = 0x5E
		return s
	}())

	params := fmt.Sprintf(`{
		"maker": %q,
		"deposit": "1000",
		"totalAmount": "1000",
		"minFillAmount": "10",
		"hashlock": "0x%x",
		"timelock": 2000,
		"swapId": "0x%064x",
		"sourceChain": 1,
		"destChain": 2,
		"destAmountPerUnit": "1000000000000",
		"allowPartialFills": true,
		"maxFills": 10
	}`, testMaker, hashlock, 0x22)
	_, resp := post(t, handler, fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"swap_createOrder","params":[%s]}`, params), nil)
	if resp.Error != nil {
		t.Fatalf("create: %+v", resp.Error)
	}
	orderID := resp.Result.(map[string]interface{})["orderId"].(string)

	fillBody := fmt.Sprintf(`{"jsonrpc":"2.0","id":2,"method":"swap_fillOrder","params":[{"orderId":%q,"taker":%q,"amount":"200"}]}`, orderID, testTaker)
	_, resp = post(t, handler, fillBody, nil)
	if resp.Error != nil {
		t.Fatalf("fill: %+v", resp.Error)
	}
	fillID := resp.Result.(map[string]interface{})["fillId"].(string)

	withdrawBody := fmt.Sprintf(`{"jsonrpc":"2.0","id":3,"method":"swap_withdrawFill","params":[{"fillId":%q,"caller":%q,"preimage":%q}]}`, fillID, testTaker, secret)
	rec, resp := post(t, handler, withdrawBody, nil)
	if rec.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("withdraw: status %d, error %+v", rec.Code, resp.Error)
	}

	secretBody := fmt.Sprintf(`{"jsonrpc":"2.0","id":4,"method":"swap_fillSecret","params":[{"id":%q}]}`, fillID)
	_, resp = post(t, handler, secretBody, nil)
	if resp.Error != nil {
		t.Fatalf("fill secret: %+v", resp.Error)
	}
	result := resp.Result.(map[string]interface{})
	if result["revealed"] != true || result["secret"] != secret {
		t.Fatalf("revealed secret: %v", result)
	}
}

func TestFeeStateAndCompletion(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	_, resp := post(t, handler, createOrderBody(1), nil)
	if resp.Error != nil {
		t.Fatalf("create: %+v", resp.Error)
	}
	orderID := resp.Result.(map[string]interface{})["orderId"].(string)

	_, resp = post(t, handler, `{"jsonrpc":"2.0","id":2,"method":"swap_feeState","params":[]}`, nil)
	if resp.Error != nil {
		t.Fatalf("fee state: %+v", resp.Error)
	}
	feeState := resp.Result.(map[string]interface{})
	if feeState["feeRateBps"] != float64(30) || feeState["accumulatedFees"] != "3" {
		t.Fatalf("fee state payload: %v", feeState)
	}
	if feeState["admin"] != testAdmin {
		t.Fatalf("fee state admin: %v", feeState["admin"])
	}

	completeBody := fmt.Sprintf(`{"jsonrpc":"2.0","id":3,"method":"swap_isComplete","params":[{"id":%q}]}`, orderID)
	_, resp = post(t, handler, completeBody, nil)
	if resp.Error != nil {
		t.Fatalf("is complete: %+v", resp.Error)
	}
	if resp.Result.(map[string]interface{})["complete"] != false {
		t.Fatalf("fresh order reported complete")
	}

	remainingBody := fmt.Sprintf(`{"jsonrpc":"2.0","id":4,"method":"swap_remaining","params":[{"id":%q}]}`, orderID)
	_, resp = post(t, handler, remainingBody, nil)
	if resp.Error != nil {
		t.Fatalf("remaining: %+v", resp.Error)
	}
	if resp.Result.(map[string]interface{})["remaining"] != "997" {
		t.Fatalf("remaining payload: %v", resp.Result)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", recorder.Code, http.StatusOK)
	}
}
