package middleware

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"clinic-scheduler/internal/auth"
	"clinic-scheduler/internal/scheduling"
)

type ctxKey string

const callerKey ctxKey = "caller"

// skip auth for these
var open = map[string]bool{
	"/clinic.v1.ScheduleService/Register": true,
	"/clinic.v1.ScheduleService/Login":    true,
	"/grpc.health.v1.Health/Check":        true,
	"/grpc.health.v1.Health/Watch":        true,
}

func WithCaller(ctx context.Context, c scheduling.Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

func CallerFrom(ctx context.Context) (scheduling.Caller, bool) {
	c, ok := ctx.Value(callerKey).(scheduling.Caller)
	return c, ok
}

// Authenticate resolves a bearer token into a caller.
func Authenticate(raw, secret string) (scheduling.Caller, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if raw == "" {
		return scheduling.Caller{}, status.Error(codes.Unauthenticated, "no token")
	}
	claims, err := auth.ParseToken(raw, secret)
	if err != nil {
		return scheduling.Caller{}, status.Error(codes.Unauthenticated, "bad token")
	}
	c, err := scheduling.NewCaller(claims.UserID, claims.Role)
	if err != nil {
		return scheduling.Caller{}, status.Error(codes.Unauthenticated, "bad token")
	}
	return c, nil
}

func Auth(secret string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if open[info.FullMethod] {
			return next(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		// token from Authorization: Bearer <jwt>
		raw := ""
		if vals := md.Get("authorization"); len(vals) > 0 {
			raw = vals[0]
		}
		c, err := Authenticate(raw, secret)
		if err != nil {
			return nil, err
		}
		return next(WithCaller(ctx, c), req)
	}
}
