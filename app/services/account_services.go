package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// ResetNotifier hands a freshly issued reset code to the account owner.
type ResetNotifier interface {
	NotifyResetCode(ctx context.Context, user *models.User, code string, expiresAt time.Time) error
}

type AccountDeps struct {
	Users    *repositories.UserRepository
	Hasher   auth.PasswordHasher
	Notifier ResetNotifier
	ResetTTL time.Duration

	// Now and Random default to time.Now and crypto/rand.
	Now    func() time.Time
	Random io.Reader
}

// AccountService owns registration, login, profile edits and the
// password-reset code lifecycle.
type AccountService struct {
	users    *repositories.UserRepository
	hasher   auth.PasswordHasher
	notifier ResetNotifier
	resetTTL time.Duration
	now      func() time.Time
	random   io.Reader

	// decoy is compared against when the email is unknown so both login
	// failures cost one bcrypt comparison.
	decoy string
}

func NewAccountService(d AccountDeps) (*AccountService, error) {
	s := &AccountService{
		users:    d.Users,
		hasher:   d.Hasher,
		notifier: d.Notifier,
		resetTTL: d.ResetTTL,
		now:      d.Now,
		random:   d.Random,
	}
	if s.resetTTL <= 0 {
		s.resetTTL = time.Hour
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.random == nil {
		s.random = rand.Reader
	}

	decoy, err := s.hasher.Hash("decoy-password-for-unknown-accounts")
	if err != nil {
		return nil, fmt.Errorf("account service: %w", err)
	}
	s.decoy = decoy
	return s, nil
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Gender   string
}

// Register creates an account. The email must not be in use.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	gender, err := models.ParseGender(in.Gender)
	if err != nil {
		return nil, wrap(ErrUnknownGender, err)
	}
	email := normaliseEmail(in.Email)

	taken, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, internal(err)
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := s.hashSecret(in.Password, "password")
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Gender:       gender,
	}
	// the pre-check is advisory; two concurrent signups meet at the index
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrEmailTaken) {
			return nil, wrap(ErrEmailTaken, err)
		}
		return nil, internal(err)
	}

	logger.WithCtx(ctx).Info("account registered", "user_id", user.ID)
	return user, nil
}

// Authenticate checks email and password. Unknown email and wrong password
// fail identically.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, normaliseEmail(email))
	if errors.Is(err, repositories.ErrNotFound) {
		s.hasher.Matches(s.decoy, password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, internal(err)
	}
	if !s.hasher.Matches(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		logger.WithCtx(ctx).Warn("could not record last login", "user_id", user.ID, "error", err)
	} else {
		user.LastLoginAt = &now
	}
	return user, nil
}

// RequestReset issues a fresh six-digit code for email, replacing any
// outstanding one, and hands it to the notifier. The code is returned for
// callers that deliver it themselves; HTTP handlers must not echo it.
func (s *AccountService) RequestReset(ctx context.Context, email string) (string, error) {
	user, err := s.findUser(ctx, email)
	if err != nil {
		return "", err
	}

	code, err := s.newResetCode()
	if err != nil {
		return "", wrap(ErrInternal, fmt.Errorf("generate reset code: %w", err))
	}
	expiresAt := s.now().UTC().Add(s.resetTTL)

	if err := s.users.SetResetCode(ctx, user.ID, digest(code), expiresAt); err != nil {
		return "", internal(err)
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyResetCode(ctx, user, code, expiresAt); err != nil {
			logger.WithCtx(ctx).Error("reset code delivery failed", "user_id", user.ID, "error", err)
		}
	}
	logger.WithCtx(ctx).Info("reset code issued", "user_id", user.ID, "expires_at", expiresAt)
	return code, nil
}

// ConfirmReset replaces the password when code matches the outstanding,
// unexpired reset code. The code is single use.
func (s *AccountService) ConfirmReset(ctx context.Context, email, code, newPassword string) error {
	user, err := s.findUser(ctx, email)
	if err != nil {
		return err
	}
	if !user.HasResetCode() {
		return ErrInvalidCode
	}

	got := digest(strings.TrimSpace(code))
	if subtle.ConstantTimeCompare([]byte(got), []byte(*user.ResetCodeHash)) != 1 {
		return ErrInvalidCode
	}
	now := s.now().UTC()
	if !now.Before(*user.ResetCodeExpiresAt) {
		if err := s.users.ClearResetCode(ctx, user.ID, got); err != nil {
			logger.WithCtx(ctx).Warn("could not clear expired reset code", "user_id", user.ID, "error", err)
		}
		return ErrCodeExpired
	}

	hash, err := s.hashSecret(newPassword, "new_password")
	if err != nil {
		return err
	}
	ok, err := s.users.ConsumeResetCode(ctx, user.ID, got, hash, now)
	if err != nil {
		return internal(err)
	}
	if !ok {
		// used or replaced between the read and the update
		return ErrInvalidCode
	}

	logger.WithCtx(ctx).Info("password reset", "user_id", user.ID)
	return nil
}

// ChangeSecret replaces the password after checking the current one.
func (s *AccountService) ChangeSecret(ctx context.Context, email, oldPassword, newPassword string) error {
	user, err := s.findUser(ctx, email)
	if err != nil {
		return err
	}
	if !s.hasher.Matches(user.PasswordHash, oldPassword) {
		return ErrWrongOldSecret
	}

	hash, err := s.hashSecret(newPassword, "new_password")
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return wrap(ErrUserNotFound, err)
		}
		return internal(err)
	}
	logger.WithCtx(ctx).Info("password changed", "user_id", user.ID)
	return nil
}

type ProfileInput struct {
	Name   string
	Email  string
	Gender string
}

// UpdateProfile rewrites name, email and gender of the account currently
// identified by email. Callers must issue a new token when the email
// changes since tokens carry it as the subject.
func (s *AccountService) UpdateProfile(ctx context.Context, email string, in ProfileInput) (*models.User, error) {
	gender, err := models.ParseGender(in.Gender)
	if err != nil {
		return nil, wrap(ErrUnknownGender, err)
	}
	user, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}

	newEmail := normaliseEmail(in.Email)
	if newEmail != user.Email {
		taken, err := s.users.EmailExists(ctx, newEmail)
		if err != nil {
			return nil, internal(err)
		}
		if taken {
			return nil, ErrEmailTaken
		}
	}

	name := strings.TrimSpace(in.Name)
	if err := s.users.UpdateProfile(ctx, user.ID, name, newEmail, gender); err != nil {
		switch {
		case errors.Is(err, repositories.ErrEmailTaken):
			return nil, wrap(ErrEmailTaken, err)
		case errors.Is(err, repositories.ErrNotFound):
			return nil, wrap(ErrUserNotFound, err)
		}
		return nil, internal(err)
	}

	user.Name, user.Email, user.Gender = name, newEmail, gender
	return user, nil
}

// Profile returns the account identified by email.
func (s *AccountService) Profile(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, email)
}

func (s *AccountService) findUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, normaliseEmail(email))
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, wrap(ErrUserNotFound, err)
	}
	if err != nil {
		return nil, internal(err)
	}
	return user, nil
}

func (s *AccountService) hashSecret(secret, field string) (string, error) {
	hash, err := s.hasher.Hash(secret)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", Invalid(map[string]string{field: "must be at most 72 bytes"})
	}
	if err != nil {
		return "", wrap(ErrInternal, fmt.Errorf("hash password: %w", err))
	}
	return hash, nil
}

// newResetCode draws a uniformly distributed code in [100000, 999999].
func (s *AccountService) newResetCode() (string, error) {
	n, err := rand.Int(s.random, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func digest(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func normaliseEmail(email string) string {
	return strings.TrimSpace(email)
}
