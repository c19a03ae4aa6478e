package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/response"
)

type OrderController struct {
	checkout *services.CheckoutService
}

func NewOrderController(checkout *services.CheckoutService) *OrderController {
	return &OrderController{checkout: checkout}
}

type CartItemRequest struct {
	ProductID string          `json:"product_id" validate:"required,max=64"`
	Title     string          `json:"title" validate:"required,max=255"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"positive_decimal"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	Size      string          `json:"size" validate:"max=32"`
	ImageURL  string          `json:"image_url" validate:"omitempty,url,max=1024"`
}

type CheckoutRequest struct {
	Items           []CartItemRequest `json:"items" validate:"required,min=1,dive"`
	Total           decimal.Decimal   `json:"total" validate:"positive_decimal"`
	PaymentMethod   string            `json:"payment_method" validate:"required"`
	ShippingAddress string            `json:"shipping_address" validate:"required,max=500"`
	Phone           string            `json:"phone" validate:"required,max=32"`
	Notes           string            `json:"notes" validate:"max=2000"`
}

type CheckoutView struct {
	Order        *models.Order `json:"order"`
	ClientSecret string        `json:"client_secret,omitempty"`
}

// Checkout handles POST /api/orders.
func (c *OrderController) Checkout(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	var req CheckoutRequest
	if !decode(w, r, &req) {
		return
	}

	in := services.CheckoutInput{
		Total:           req.Total,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		Phone:           req.Phone,
		Notes:           req.Notes,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, services.CartItem{
			ProductID: it.ProductID,
			Title:     it.Title,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Size:      it.Size,
			ImageURL:  it.ImageURL,
		})
	}

	res, err := c.checkout.Checkout(r.Context(), sub, in)
	if err != nil {
		response.Fail(r.Context(), w, err)
		return
	}
	response.Created(w, CheckoutView{Order: res.Order, ClientSecret: res.ClientSecret})
}

// Index handles GET /api/orders.
func (c *OrderController) Index(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	orders, err := c.checkout.Orders(r.Context(), sub)
	if err != nil {
		response.Fail(r.Context(), w, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	response.Success(w, orders)
}

// Show handles GET /api/orders/{id}.
func (c *OrderController) Show(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	order, err := c.checkout.Order(r.Context(), sub, id)
	if err != nil {
		response.Fail(r.Context(), w, err)
		return
	}
	response.Success(w, order)
}

// Cancel handles POST /api/orders/{id}/cancel.
func (c *OrderController) Cancel(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	order, err := c.checkout.CancelOrder(r.Context(), sub, id)
	if err != nil {
		response.Fail(r.Context(), w, err)
		return
	}
	response.Success(w, order)
}
