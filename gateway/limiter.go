package gateway

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter 控制请求速率，避免触发交易所限流。
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// NewRateLimiter 基于令牌桶；rate<=0 时不限流。
func NewRateLimiter(rps float64, burst int) RateLimiter {
	if rps <= 0 {
		return unlimited{}
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

type unlimited struct{}

func (unlimited) Wait(ctx context.Context) error { return ctx.Err() }
