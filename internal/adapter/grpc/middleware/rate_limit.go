package middleware

import (
	"context"
	"net"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"user-service/pkg/logger"
	"user-service/pkg/ratelimit"
)

// RateLimiter applies a token bucket per method and client IP to unary calls.
type RateLimiter struct {
	limiter ratelimit.Limiter
	log     *zap.Logger
}

// NewRateLimiter creates the interceptor source. A nil limiter disables it.
func NewRateLimiter(limiter ratelimit.Limiter, log *zap.Logger) *RateLimiter {
	return &RateLimiter{limiter: limiter, log: log}
}

// UnaryInterceptor returns a gRPC unary interceptor for rate limiting.
// Limiter errors fail open.
func (rl *RateLimiter) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if rl.limiter == nil {
			return handler(ctx, req)
		}

		clientIP := clientIP(ctx)
		key := info.FullMethod + ":" + clientIP

		allowed, err := rl.limiter.Allow(ctx, key)
		if err != nil {
			logger.WithContext(ctx, rl.log).Warn("rate limiter unavailable, allowing request",
				zap.String("client_ip", clientIP),
				zap.String("method", info.FullMethod),
				zap.Error(err),
			)
			return handler(ctx, req)
		}
		if !allowed {
			logger.WithContext(ctx, rl.log).Warn("rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.String("method", info.FullMethod),
			)
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded, retry later")
		}
		return handler(ctx, req)
	}
}

// clientIP prefers forwarding metadata, then the peer address without port.
func clientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if xff := md.Get("x-forwarded-for"); len(xff) > 0 {
			return strings.TrimSpace(strings.Split(xff[0], ",")[0])
		}
		if xri := md.Get("x-real-ip"); len(xri) > 0 {
			return xri[0]
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
