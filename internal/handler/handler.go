package handler

import (
	"context"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"clinic-scheduler/internal/middleware"
	"clinic-scheduler/internal/model"
	"clinic-scheduler/internal/scheduling"
)

// UserStore is the identity side the handler registers and logs users in
// against.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
}

type Handler struct {
	svc    *scheduling.Service
	users  UserStore
	secret string
	log    zerolog.Logger
}

func New(svc *scheduling.Service, users UserStore, secret string, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, users: users, secret: secret, log: log}
}

func caller(ctx context.Context) (scheduling.Caller, error) {
	c, ok := middleware.CallerFrom(ctx)
	if !ok {
		return scheduling.Caller{}, status.Error(codes.Unauthenticated, "not authenticated")
	}
	return c, nil
}

// toStatus maps lifecycle errors onto gRPC codes. Internal causes are logged
// and hidden from the client.
func (h *Handler) toStatus(op string, err error) error {
	var code codes.Code
	switch scheduling.KindOf(err) {
	case scheduling.KindBadRequest:
		code = codes.InvalidArgument
	case scheduling.KindNotFound:
		code = codes.NotFound
	case scheduling.KindAccessDenied:
		code = codes.PermissionDenied
	case scheduling.KindConflict:
		code = codes.AlreadyExists
	case scheduling.KindInvalidState:
		code = codes.FailedPrecondition
	default:
		h.log.Error().Err(err).Str("op", op).Msg("internal error")
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, scheduling.Message(err))
}
