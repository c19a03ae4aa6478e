// Package routes declares the storefront's HTTP API.
package routes

import (
	"github.com/shashiranjanraj/storefront/app/controllers"
	"github.com/shashiranjanraj/storefront/pkg/middleware"
	"github.com/shashiranjanraj/storefront/pkg/router"
)

// API holds what the routes dispatch to. A zero API registers every route
// without being able to serve them, which is enough for route:list.
type API struct {
	Auth     *controllers.AuthController
	Profile  *controllers.ProfileController
	Orders   *controllers.OrderController
	Payments *controllers.PaymentController

	Tokens        middleware.TokenValidator
	WebhookHeader string
	WebhookSecret string
}

func RegisterAPI(r *router.Router, a API) {
	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/signup", "auth.signup", a.Auth.Signup)
	auth.Post("/login", "auth.login", a.Auth.Login)
	auth.Post("/password/forgot", "auth.password.forgot", a.Auth.ForgotPassword)
	auth.Post("/password/reset", "auth.password.reset", a.Auth.ResetPassword)

	api.Get("/payments/public-key", "payments.public_key", a.Payments.PublicKey)
	api.Post("/payments/webhook", "payments.webhook", a.Payments.Webhook,
		middleware.SharedSecret(a.WebhookHeader, a.WebhookSecret))

	protected := api.Group("", middleware.Bearer(a.Tokens))
	protected.Get("/profile", "profile.show", a.Profile.Show)
	protected.Put("/profile", "profile.update", a.Profile.Update)
	protected.Put("/profile/password", "profile.password", a.Profile.ChangePassword)

	protected.Post("/orders", "orders.store", a.Orders.Checkout)
	protected.Get("/orders", "orders.index", a.Orders.Index)
	protected.Get("/orders/{id}", "orders.show", a.Orders.Show)
	protected.Post("/orders/{id}/cancel", "orders.cancel", a.Orders.Cancel)

	protected.Post("/payments/{intent}/confirm", "payments.confirm", a.Payments.Confirm)
}
