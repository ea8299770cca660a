package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// RESTOptions 连接器通用参数。
type RESTOptions struct {
	BaseURL    string
	APIKey     string
	Secret     string
	Passphrase string
	RateLimit  float64
	Burst      int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// restClient 封装限流与只读请求的重试/熔断。写操作只发一次，避免重复下单。
type restClient struct {
	baseURL  string
	http     *http.Client
	limiter  RateLimiter
	pipeline failsafe.Executor[*http.Response]
}

func newRESTClient(opts RESTOptions, defaultBase string) *restClient {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultBase
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = NewDefaultHTTPClient()
		if opts.Timeout > 0 {
			hc.Timeout = opts.Timeout
		}
	}
	retry := retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		}).
		WithBackoff(100*time.Millisecond, 2*time.Second).
		WithMaxRetries(3).
		OnRetry(func(e failsafe.ExecutionEvent[*http.Response]) {
			// 被重试的响应不会返回给调用方，在这里释放连接
			discardBody(e.LastResult())
		}).
		Build()
	breaker := circuitbreaker.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500
		}).
		WithFailureThresholdRatio(5, 10).
		WithDelay(10 * time.Second).
		Build()
	return &restClient{
		baseURL:  base,
		http:     hc,
		limiter:  NewRateLimiter(opts.RateLimit, opts.Burst),
		pipeline: failsafe.With[*http.Response](retry, breaker),
	}
}

// do 发送请求并返回响应体；非 2xx 返回 *APIError。
func (c *restClient) do(ctx context.Context, method, path, query string, body []byte, header http.Header) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	endpoint := c.baseURL + path
	if query != "" {
		endpoint += "?" + query
	}
	send := func() (*http.Response, error) {
		var rd io.Reader
		if len(body) > 0 {
			rd = strings.NewReader(string(body))
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		return c.http.Do(req)
	}

	var (
		resp *http.Response
		err  error
	)
	if method == http.MethodGet {
		resp, err = c.pipeline.WithContext(ctx).Get(send)
	} else {
		resp, err = send()
	}
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: data}
	}
	return data, nil
}

func discardBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
