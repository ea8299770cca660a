package httpapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-agent-go/agent"
	"market-agent-go/gateway"
	"market-agent-go/httpapi"
	"market-agent-go/strategy"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T, cfg httpapi.Config) *httptest.Server {
	t.Helper()
	paper := gateway.NewPaperExchange("mexc", gateway.PaperOptions{
		Prices: map[string]float64{"BTC/USDT": 65000},
	})
	reg := gateway.NewRegistry(paper)
	tools := agent.NewToolset(reg, strategy.NewService(reg, nil), nil)
	mcpSrv := agent.NewMCPServer("market-agent", "test", tools, nil)
	srv := httptest.NewServer(httpapi.New(tools, mcpSrv, cfg, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func sign(t *testing.T, key string, method jwt.SigningMethod) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(key))
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, method, u, token, body string) (int, map[string]interface{}) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, u, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestHealthIsPublic(t *testing.T) {
	srv := newServer(t, httpapi.Config{JWTSecret: secret})
	code, body := do(t, http.MethodGet, srv.URL+"/healthz", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 11.0, body["tools"])
}

func TestJWTMiddleware(t *testing.T) {
	srv := newServer(t, httpapi.Config{JWTSecret: secret})

	code, body := do(t, http.MethodGet, srv.URL+"/v1/tools", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "missing bearer token", body["error"])

	code, _ = do(t, http.MethodGet, srv.URL+"/v1/tools", sign(t, "other-secret", jwt.SigningMethodHS256), "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = do(t, http.MethodGet, srv.URL+"/v1/tools", sign(t, secret, jwt.SigningMethodHS512), "")
	assert.Equal(t, http.StatusUnauthorized, code, "only HS256 is accepted")

	code, body = do(t, http.MethodGet, srv.URL+"/v1/tools", sign(t, secret, jwt.SigningMethodHS256), "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["tools"], 11)
}

func TestNoSecretMeansNoAuth(t *testing.T) {
	srv := newServer(t, httpapi.Config{})
	code, _ := do(t, http.MethodGet, srv.URL+"/v1/resources", "", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestCallTool(t *testing.T) {
	srv := newServer(t, httpapi.Config{})

	code, body := do(t, http.MethodPost, srv.URL+"/v1/tools/get_ticker", "", `{"exchange":"mexc","symbol":"BTC/USDT"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "BTC/USDT", body["symbol"])
	assert.Equal(t, "mexc", body["exchange"])

	code, body = do(t, http.MethodPost, srv.URL+"/v1/tools/start_grid_strategy", "", `{"exchange":"ftx","symbol":"BTC/USDT"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "unsupported_exchange", body["error"].(map[string]interface{})["kind"])

	code, body = do(t, http.MethodPost, srv.URL+"/v1/tools/start_grid_strategy", "", `{"exchange":"mexc","symbol":"BTC/USDT","levels":0}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_configuration", body["error"].(map[string]interface{})["kind"])

	code, body = do(t, http.MethodPost, srv.URL+"/v1/tools/launch_rocket", "", `{}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "unknown_tool", body["error"].(map[string]interface{})["kind"])

	code, body = do(t, http.MethodPost, srv.URL+"/v1/tools/get_ticker", "", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_params", body["error"].(map[string]interface{})["kind"])

	code, _ = do(t, http.MethodGet, srv.URL+"/metrics", "", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestReadResource(t *testing.T) {
	srv := newServer(t, httpapi.Config{})

	code, body := do(t, http.MethodGet, srv.URL+"/v1/resources/read?uri="+url.QueryEscape("strategies://grid"), "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "text/markdown", body["mimeType"])
	assert.NotEmpty(t, body["text"])

	code, _ = do(t, http.MethodGet, srv.URL+"/v1/resources/read?uri="+url.QueryEscape("nope://x"), "", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, http.MethodGet, srv.URL+"/v1/resources/read", "", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newServer(t, httpapi.Config{AllowedOrigins: []string{"https://desk.example"}})
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/v1/tools", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://desk.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://desk.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWebSocketBridge(t *testing.T) {
	srv := newServer(t, httpapi.Config{JWTSecret: secret})
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/mcp/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+sign(t, secret, jwt.SigningMethodHS256))
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var out struct {
		ID     float64 `json:"id"`
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(msg, &out))
	assert.Equal(t, 1.0, out.ID)
	assert.Len(t, out.Result.Tools, 11)

	// 通知没有响应，下一条请求的响应必须紧随其后
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","id":2,"method":"ping"}`)))
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"id":2`)
}
