package handler

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"clinic-scheduler/internal/auth"
	"clinic-scheduler/internal/model"
	"clinic-scheduler/internal/scheduling"
)

func (h *Handler) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "all fields required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid email")
	}
	if len(req.Password) < 8 {
		return nil, status.Error(codes.InvalidArgument, "password too short")
	}
	role := model.Role(strings.ToUpper(req.Role))
	if role == "" {
		role = model.RolePatient
	}
	if !role.Valid() {
		return nil, status.Error(codes.InvalidArgument, "role must be PATIENT or DOCTOR")
	}
	if role == model.RoleDoctor && strings.TrimSpace(req.Specialty) == "" {
		return nil, status.Error(codes.InvalidArgument, "doctors need a specialty")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		Name:         scheduling.SanitizeText(req.Name),
		Role:         role,
		Specialty:    scheduling.SanitizeText(req.Specialty),
	}
	if err := h.users.CreateUser(ctx, u); err != nil {
		if !errors.Is(err, scheduling.ErrDuplicateEmail) {
			h.log.Error().Err(err).Msg("create user")
		}
		// don't reveal whether the email exists
		return nil, status.Error(codes.AlreadyExists, "registration failed")
	}

	tok, err := auth.MakeToken(u.ID, u.Role, h.secret)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return &RegisterResponse{UserID: u.ID, Token: tok}, nil
}

func (h *Handler) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password required")
	}

	u, err := h.users.UserByEmail(ctx, req.Email)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}

	tok, err := auth.MakeToken(u.ID, u.Role, h.secret)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return &LoginResponse{Token: tok, UserID: u.ID, Name: u.Name, Role: string(u.Role)}, nil
}
