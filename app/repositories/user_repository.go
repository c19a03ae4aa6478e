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

// UserRepository persists accounts and their reset-code state.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail matches the email exactly (case-sensitive).
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Take(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return n > 0, nil
}

// Create inserts user. A unique-index violation becomes ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if database.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateProfile rewrites name, email and gender of user id.
func (r *UserRepository) UpdateProfile(ctx context.Context, id uint, name, email string, gender models.Gender) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":   name,
		"email":  email,
		"gender": gender,
	})
	if database.IsUniqueViolation(res.Error) {
		return ErrEmailTaken
	}
	if res.Error != nil {
		return fmt.Errorf("update profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id uint, hash string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return fmt.Errorf("update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResetCode stores a code digest and its expiry, replacing any
// outstanding code.
func (r *UserRepository) SetResetCode(ctx context.Context, id uint, digest string, expiresAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"reset_code_hash":       digest,
		"reset_code_expires_at": expiresAt,
	})
	if res.Error != nil {
		return fmt.Errorf("set reset code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeResetCode replaces the password hash and clears the code in one
// conditional statement. It reports false when the stored digest no longer
// matches or has expired by now, i.e. the code was used or replaced
// concurrently.
func (r *UserRepository) ConsumeResetCode(ctx context.Context, id uint, digest, newHash string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND reset_code_hash = ? AND reset_code_expires_at > ?", id, digest, now).
		Updates(map[string]interface{}{
			"password_hash":         newHash,
			"reset_code_hash":       nil,
			"reset_code_expires_at": nil,
		})
	if res.Error != nil {
		return false, fmt.Errorf("consume reset code: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ClearResetCode drops the outstanding code if it is still digest, so a
// code issued in the meantime survives.
func (r *UserRepository) ClearResetCode(ctx context.Context, id uint, digest string) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND reset_code_hash = ?", id, digest).
		Updates(map[string]interface{}{
			"reset_code_hash":       nil,
			"reset_code_expires_at": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("clear reset code: %w", err)
	}
	return nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}
