package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/response"
)

type ProfileController struct {
	accounts *services.AccountService
	tokens   *auth.TokenService
}

func NewProfileController(accounts *services.AccountService, tokens *auth.TokenService) *ProfileController {
	return &ProfileController{accounts: accounts, tokens: tokens}
}

type UpdateProfileRequest struct {
	Name   string `json:"name" validate:"required,max=255"`
	Email  string `json:"email" validate:"required,email,max=255"`
	Gender string `json:"gender" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72,nefield=OldPassword"`
}

// Show handles GET /api/profile.
func (c *ProfileController) Show(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	u, err := c.accounts.Profile(r.Context(), sub)
	if err != nil {
		response.Fail(r.Context(), w, err)
		return
	}
	response.Success(w, profileView(u))
}

// Update handles PUT /api/profile. The reply carries a fresh token since
// the old one names the previous email.
func (c *ProfileController) Update(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := c.accounts.UpdateProfile(r.Context(), sub, services.ProfileInput{
		Name:   req.Name,
		Email:  req.Email,
		Gender: req.Gender,
	})
	if err != nil {
		response.Fail(r.Context(), w, err)
		return
	}

	token, err := c.tokens.Issue(u.Email)
	if err != nil {
		response.Fail(r.Context(), w, err)
		return
	}
	response.Success(w, SessionView{Token: token, User: profileView(u)})
}

// ChangePassword handles PUT /api/profile/password.
func (c *ProfileController) ChangePassword(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := c.accounts.ChangeSecret(r.Context(), sub, req.OldPassword, req.NewPassword); err != nil {
		response.Fail(r.Context(), w, err)
		return
	}
	response.Message(w, "Password updated.")
}
