package middleware

import (
	"context"
	"net"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"user-service/pkg/ratelimit"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func mockHandler(ctx context.Context, req any) (any, error) {
	return "success", nil
}

func peerCtx(addr string) context.Context {
	tcp, _ := net.ResolveTCPAddr("tcp", addr)
	return peer.NewContext(context.Background(), &peer.Peer{Addr: tcp})
}

func newInterceptor(t *testing.T, client *redis.Client, rps float64, burst int) grpc.UnaryServerInterceptor {
	limiter := ratelimit.NewRedisTokenBucket(client, ratelimit.Config{Enabled: true, RequestsPerSecond: rps, BurstCapacity: burst}, "ratelimit:grpc:")
	return NewRateLimiter(limiter, zaptest.NewLogger(t)).UnaryInterceptor()
}

var getUserInfo = &grpc.UnaryServerInfo{FullMethod: "/users.v1.UserService/GetUser"}

func TestRateLimiter_ExceedLimit(t *testing.T) {
	client, mr := setupTestRedis(t)
	interceptor := newInterceptor(t, client, 0.01, 5)
	ctx := peerCtx("127.0.0.1:12345")

	for i := 0; i < 5; i++ {
		resp, err := interceptor(ctx, nil, getUserInfo, mockHandler)
		require.NoError(t, err)
		assert.Equal(t, "success", resp)
	}

	resp, err := interceptor(ctx, nil, getUserInfo, mockHandler)
	require.Error(t, err)
	assert.Nil(t, resp)

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.ResourceExhausted, st.Code())
	assert.Contains(t, st.Message(), "rate limit exceeded")

	// The port is not part of the key.
	assert.True(t, mr.Exists("ratelimit:grpc:/users.v1.UserService/GetUser:127.0.0.1"))
}

func TestRateLimiter_SeparateBuckets(t *testing.T) {
	client, _ := setupTestRedis(t)
	interceptor := newInterceptor(t, client, 0.01, 1)

	_, err := interceptor(peerCtx("192.168.1.1:1000"), nil, getUserInfo, mockHandler)
	require.NoError(t, err)

	// Another IP has its own bucket.
	_, err = interceptor(peerCtx("192.168.1.2:1000"), nil, getUserInfo, mockHandler)
	require.NoError(t, err)

	// Another method has its own bucket.
	_, err = interceptor(peerCtx("192.168.1.1:1000"), nil, &grpc.UnaryServerInfo{FullMethod: "/users.v1.UserService/CreateUser"}, mockHandler)
	require.NoError(t, err)

	_, err = interceptor(peerCtx("192.168.1.1:2000"), nil, getUserInfo, mockHandler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestRateLimiter_XForwardedFor(t *testing.T) {
	client, mr := setupTestRedis(t)
	interceptor := newInterceptor(t, client, 5, 10)

	md := metadata.Pairs("x-forwarded-for", "203.0.113.1, 10.0.0.1")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	_, err := interceptor(ctx, nil, getUserInfo, mockHandler)
	require.NoError(t, err)
	assert.True(t, mr.Exists("ratelimit:grpc:/users.v1.UserService/GetUser:203.0.113.1"))
}

func TestRateLimiter_FailOpen(t *testing.T) {
	client, mr := setupTestRedis(t)
	interceptor := newInterceptor(t, client, 1, 1)
	mr.Close()

	for i := 0; i < 3; i++ {
		resp, err := interceptor(peerCtx("127.0.0.1:1"), nil, getUserInfo, mockHandler)
		require.NoError(t, err)
		assert.Equal(t, "success", resp)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	interceptor := NewRateLimiter(nil, zaptest.NewLogger(t)).UnaryInterceptor()

	for i := 0; i < 10; i++ {
		resp, err := interceptor(peerCtx("127.0.0.1:1"), nil, getUserInfo, mockHandler)
		require.NoError(t, err)
		assert.Equal(t, "success", resp)
	}
}
