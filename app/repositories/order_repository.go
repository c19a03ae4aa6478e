package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/pkg/database"
)

// OrderRepository persists orders with their items. Every status change goes
// through TransitionStatus so the transition table is enforced by a single
// conditional UPDATE.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func itemsInCartOrder(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Create inserts order and its items in one transaction. Item positions are
// assigned from slice order.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	for i := range order.Items {
		order.Items[i].Position = i
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) find(ctx context.Context, query *gorm.DB) (*models.Order, error) {
	var order models.Order
	err := query.WithContext(ctx).Preload("Items", itemsInCartOrder).Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &order, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	return r.find(ctx, r.db.Where("id = ?", id))
}

// FindByIDForUser returns ErrNotFound both for a missing order and for one
// owned by someone else.
func (r *OrderRepository) FindByIDForUser(ctx context.Context, id, userID uint) (*models.Order, error) {
	return r.find(ctx, r.db.Where("id = ? AND user_id = ?", id, userID))
}

func (r *OrderRepository) FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error) {
	return r.find(ctx, r.db.Where("payment_intent_id = ?", intentID))
}

// FindByUser lists a user's orders newest first.
func (r *OrderRepository) FindByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", itemsInCartOrder).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("find orders by user: %w", err)
	}
	return orders, nil
}

// SetPaymentIntent links an intent while the order has none.
func (r *OrderRepository) SetPaymentIntent(ctx context.Context, id uint, intentID string) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_intent_id IS NULL", id).
		Update("payment_intent_id", intentID)
	if database.IsUniqueViolation(res.Error) {
		return ErrIntentAlreadySet
	}
	if res.Error != nil {
		return fmt.Errorf("set payment intent: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return ErrIntentAlreadySet
}

// TransitionStatus moves order id to status to if its current status is an
// allowed predecessor. Moving to CONFIRMED also stamps paid_at with at, in
// the same statement. When no row changes the order is re-read to report
// ErrAlreadyInStatus, ErrNotFound or ErrIllegalTransition.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id uint, to models.Status, at time.Time) error {
	if from := models.Predecessors(to); len(from) > 0 {
		updates := map[string]interface{}{"status": to}
		query := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ? AND status IN ?", id, from)
		if to == models.StatusConfirmed {
			updates["paid_at"] = at
			query = query.Where("paid_at IS NULL")
		}

		res := query.Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("transition order %d to %s: %w", id, to, res.Error)
		}
		if res.RowsAffected == 1 {
			return nil
		}
	}

	var current models.Order
	err := r.db.WithContext(ctx).Select("id", "status").Where("id = ?", id).Take(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read order %d status: %w", id, err)
	}
	if current.Status == to {
		return ErrAlreadyInStatus
	}
	return fmt.Errorf("%w: %s → %s", ErrIllegalTransition, current.Status, to)
}

// ListPendingCardOrders returns up to limit PENDING card orders that carry a
// payment intent and have an id above afterID, in id order. Pass the last id
// of one page as afterID of the next.
func (r *OrderRepository) ListPendingCardOrders(ctx context.Context, afterID uint, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_method = ? AND payment_intent_id IS NOT NULL", models.StatusPending, models.PaymentCard).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list pending card orders: %w", err)
	}
	return orders, nil
}
