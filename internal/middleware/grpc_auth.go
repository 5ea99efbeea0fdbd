package middleware

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// GRPCAuthMiddleware applies TokenAuth to selected gRPC methods.
type GRPCAuthMiddleware struct {
	auth      *TokenAuth
	protected map[string]bool
}

// NewGRPCAuthMiddleware protects the given full method names
// (e.g. "/shortener.Shortener/Shorten").
func NewGRPCAuthMiddleware(auth *TokenAuth, methods ...string) *GRPCAuthMiddleware {
	protected := make(map[string]bool, len(methods))
	for _, m := range methods {
		protected[m] = true
	}

	return &GRPCAuthMiddleware{
		auth:      auth,
		protected: protected,
	}
}

func (m *GRPCAuthMiddleware) UnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if !m.protected[info.FullMethod] {
		return handler(ctx, req)
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "metadata is missing")
	}

	values := md.Get("authorization")
	if len(values) == 0 || !m.auth.Valid(values[0]) {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	return handler(ctx, req)
}
