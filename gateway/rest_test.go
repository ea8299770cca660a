package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackingTransport 记录每个响应体是否被关闭。
type trackingTransport struct {
	base   http.RoundTripper
	mu     sync.Mutex
	bodies []*trackedBody
}

type trackedBody struct {
	io.ReadCloser
	mu     sync.Mutex
	closed bool
}

func (b *trackedBody) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return b.ReadCloser.Close()
}

func (t *trackingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	tb := &trackedBody{ReadCloser: resp.Body}
	resp.Body = tb
	t.mu.Lock()
	t.bodies = append(t.bodies, tb)
	t.mu.Unlock()
	return resp, nil
}

func TestRESTClientClosesRetriedResponses(t *testing.T) {
	var (
		mu   sync.Mutex
		hits int
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		n := hits
		mu.Unlock()
		switch n {
		case 1:
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, "upstream down")
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, "slow down")
		default:
			io.WriteString(w, `{"ok":true}`)
		}
	}))
	defer ts.Close()

	tr := &trackingTransport{base: ts.Client().Transport}
	c := newRESTClient(RESTOptions{HTTPClient: &http.Client{Transport: tr}}, ts.URL)

	data, err := c.do(context.Background(), http.MethodGet, "/ping", "", nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))

	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.Len(t, tr.bodies, 3)
	for i, b := range tr.bodies {
		b.mu.Lock()
		assert.True(t, b.closed, "response %d body left open", i+1)
		b.mu.Unlock()
	}
}
