package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrUnknownPaymentMethod = errors.New("unknown payment method")

// Status is an order's position in its lifecycle.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusPrepared  Status = "PREPARED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
	StatusRefunded  Status = "REFUNDED"
)

// transitions is the complete table of allowed moves.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPrepared, StatusRefunded},
	StatusPrepared:  {StatusShipped},
	StatusShipped:   {StatusDelivered},
}

// CanTransitionTo reports whether s → to is in the transition table.
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Predecessors lists every status that may move to to.
func Predecessors(to Status) []Status {
	var out []Status
	for from, nexts := range transitions {
		for _, n := range nexts {
			if n == to {
				out = append(out, from)
			}
		}
	}
	return out
}

// ReachedOrPassed reports whether s is target or any status reachable from it.
func (s Status) ReachedOrPassed(target Status) bool {
	if s == target {
		return true
	}
	seen := map[Status]bool{}
	queue := append([]Status(nil), transitions[target]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == s {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		queue = append(queue, transitions[cur]...)
	}
	return false
}

type PaymentMethod string

const (
	PaymentCard           PaymentMethod = "CARD"
	PaymentCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
	PaymentBankTransfer   PaymentMethod = "BANK_TRANSFER"
)

// ParsePaymentMethod accepts canonical names case-insensitively and the
// legacy STRIPE_CARD alias.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CARD", "STRIPE_CARD":
		return PaymentCard, nil
	case "CASH_ON_DELIVERY":
		return PaymentCashOnDelivery, nil
	case "BANK_TRANSFER":
		return PaymentBankTransfer, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, s)
}

// RequiresGateway reports whether checkout must authorize funds immediately.
func (m PaymentMethod) RequiresGateway() bool {
	return m == PaymentCard
}

// Money columns are numeric(10,3).
const MoneyScale = 3

// MaxAmount is the largest value a money column holds.
var MaxAmount = decimal.New(9999999999, -MoneyScale)

// StorableAmount reports whether d is stored without rounding or overflow.
func StorableAmount(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale)) && d.Abs().LessThanOrEqual(MaxAmount)
}

// Order is a placed cart. UserID and CreatedAt never change after insert;
// PaidAt is written once, by the PENDING → CONFIRMED transition.
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;index;<-:create" json:"-"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	Total           decimal.Decimal `gorm:"type:numeric(10,3);not null" json:"total"`
	Status          Status          `gorm:"size:16;not null;index" json:"status"`
	PaymentMethod   PaymentMethod   `gorm:"size:32;not null" json:"payment_method"`
	Reference       string          `gorm:"size:32;not null;uniqueIndex" json:"reference"`
	PaymentIntentID *string         `gorm:"size:255" json:"-"`
	ShippingAddress string          `gorm:"size:500;not null" json:"shipping_address"`
	Phone           string          `gorm:"size:32;not null" json:"phone"`
	Notes           string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time       `gorm:"<-:create" json:"created_at"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
}

// ItemsTotal is Σ unit price × quantity over Items.
func (o *Order) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for i := range o.Items {
		sum = sum.Add(o.Items[i].Subtotal())
	}
	return sum
}

// OrderItem is a snapshot of one cart line. Position keeps cart order.
type OrderItem struct {
	ID           uint            `gorm:"primaryKey" json:"-"`
	OrderID      uint            `gorm:"not null;index" json:"-"`
	Position     int             `gorm:"not null" json:"-"`
	ProductID    string          `gorm:"size:64;not null" json:"product_id"`
	ProductTitle string          `gorm:"size:255;not null" json:"product_title"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(10,3);not null" json:"unit_price"`
	Quantity     int             `gorm:"not null" json:"quantity"`
	Size         string          `gorm:"size:32" json:"size,omitempty"`
	ImageURL     string          `gorm:"size:1024" json:"image_url,omitempty"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
