package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/response"
	"github.com/shashiranjanraj/storefront/pkg/workerpool"
)

type AuthController struct {
	accounts *services.AccountService
	tokens   *auth.TokenService

	// background runs reset requests after the reply is written. Nil runs
	// them inline.
	background *workerpool.Pool
}

func NewAuthController(accounts *services.AccountService, tokens *auth.TokenService, background *workerpool.Pool) *AuthController {
	return &AuthController{accounts: accounts, tokens: tokens, background: background}
}

type SignupRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Gender   string `json:"gender" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// ProfileView is the public shape of an account.
type ProfileView struct {
	ID          uint          `json:"id"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	Gender      models.Gender `json:"gender"`
	CreatedAt   time.Time     `json:"created_at"`
	LastLoginAt *time.Time    `json:"last_login_at,omitempty"`
}

func profileView(u *models.User) ProfileView {
	return ProfileView{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Gender:      u.Gender,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

type SessionView struct {
	Token string      `json:"token"`
	User  ProfileView `json:"user"`
}

func (c *AuthController) session(w http.ResponseWriter, r *http.Request, u *models.User, status int) {
	token, err := c.tokens.Issue(u.Email)
	if err != nil {
		response.Fail(r.Context(), w, err)
		return
	}
	view := SessionView{Token: token, User: profileView(u)}
	if status == http.StatusCreated {
		response.Created(w, view)
		return
	}
	response.Success(w, view)
}

// Signup handles POST /api/auth/signup.
func (c *AuthController) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := c.accounts.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Gender:   req.Gender,
	})
	if err != nil {
		response.Fail(r.Context(), w, err)
		return
	}
	c.session(w, r, u, http.StatusCreated)
}

// Login handles POST /api/auth/login.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := c.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		response.Fail(r.Context(), w, err)
		return
	}
	c.session(w, r, u, http.StatusOK)
}

const forgotPasswordReply = "If an account exists for this email, a reset code has been sent."

// ForgotPassword handles POST /api/auth/password/forgot. The reply is the
// same whether or not the account exists, and never contains the code.
// With a background pool the lookup happens after the reply, so response
// time does not depend on the account existing either.
func (c *AuthController) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if c.background == nil {
		if err := c.requestReset(r.Context(), req.Email); err != nil {
			response.Fail(r.Context(), w, err)
			return
		}
		response.Message(w, forgotPasswordReply)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	err := c.background.SubmitWait(r.Context(), func() {
		if err := c.requestReset(ctx, req.Email); err != nil {
			logger.WithCtx(ctx).Error("reset request failed", "error", err)
		}
	})
	if err != nil {
		logger.WithCtx(r.Context()).Error("reset request dropped", "error", err)
	}
	response.Message(w, forgotPasswordReply)
}

func (c *AuthController) requestReset(ctx context.Context, email string) error {
	_, err := c.accounts.RequestReset(ctx, email)
	if errors.Is(err, services.ErrUserNotFound) {
		logger.WithCtx(ctx).Info("reset requested for unknown email")
		return nil
	}
	return err
}

// ResetPassword handles POST /api/auth/password/reset.
func (c *AuthController) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := c.accounts.ConfirmReset(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		response.Fail(r.Context(), w, err)
		return
	}
	response.Message(w, "Password has been reset.")
}
