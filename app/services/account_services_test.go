package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)

	u, err := f.accounts.Register(ctx, RegisterInput{Name: " Ada ", Email: "ada@example.com", Password: "s3cret-pass", Gender: "femme"})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, models.GenderFemale, u.Gender)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)

	_, err = f.accounts.Register(ctx, RegisterInput{Name: "Eve", Email: "ada@example.com", Password: "other-pass", Gender: "MALE"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestRegisterConcurrentSameEmail(t *testing.T) {
	f := newFixture(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.accounts.Register(ctx, RegisterInput{
				Name:     fmt.Sprintf("User %d", i),
				Email:    "dup@example.com",
				Password: "s3cret-pass",
				Gender:   "MALE",
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrEmailTaken)
	}
	assert.Equal(t, 1, ok)

	var count int64
	require.NoError(t, f.db.Model(&models.User{}).Where("email = ?", "dup@example.com").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

// A signup that passes the availability check but loses the insert to
// another one still reports ErrEmailTaken.
func TestRegisterLosesRaceAtUniqueIndex(t *testing.T) {
	f := newFixture(t)

	var fired int32
	err := f.db.Callback().Create().Before("gorm:create").Register("test:competing_signup", func(tx *gorm.DB) {
		if tx.Statement.Table != "users" || !atomic.CompareAndSwapInt32(&fired, 0, 1) {
			return
		}
		now := time.Now().UTC()
		require.NoError(t, tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO users (name, email, password_hash, gender, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			"Eve", "ada@example.com", "x", models.GenderFemale, now, now,
		).Error)
	})
	require.NoError(t, err)

	_, err = f.accounts.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "s3cret-pass", Gender: "FEMALE"})
	assert.EqualValues(t, 1, atomic.LoadInt32(&fired))
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, repositories.ErrEmailTaken, "the index violation is the cause")
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestRegisterRejectsUnknownGender(t *testing.T) {
	f := newFixture(t)

	_, err := f.accounts.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "s3cret-pass", Gender: "other"})
	assert.ErrorIs(t, err, ErrUnknownGender)

	exists, err := f.users.EmailExists(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.accounts.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: strings.Repeat("x", 73), Gender: "MALE"})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com")

	_, unknown := f.accounts.Authenticate(ctx, "nobody@example.com", "s3cret-pass")
	_, wrong := f.accounts.Authenticate(ctx, "ada@example.com", "bad-pass")
	assert.ErrorIs(t, unknown, ErrInvalidCredentials)
	assert.ErrorIs(t, wrong, ErrInvalidCredentials)
	assert.Equal(t, unknown.Error(), wrong.Error(), "failures must be indistinguishable")

	u, err := f.accounts.Authenticate(ctx, "ada@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.NotNil(t, u.LastLoginAt)
	assert.True(t, f.clock.Now().Equal(*u.LastLoginAt))

	stored, err := f.accounts.Profile(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	assert.True(t, f.clock.Now().Equal(stored.LastLoginAt.UTC()))
}

func TestRequestReset(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "ada@example.com")

	code, err := f.accounts.RequestReset(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[1-9][0-9]{5}$`), code)

	sent := f.notifier.last()
	assert.Equal(t, u.ID, sent.UserID)
	assert.Equal(t, code, sent.Code)
	assert.True(t, f.clock.Now().Add(time.Hour).Equal(sent.ExpiresAt))

	stored, err := f.users.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.True(t, stored.HasResetCode())
	assert.NotEqual(t, code, *stored.ResetCodeHash, "only a digest is stored")

	_, err = f.accounts.RequestReset(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestConfirmReset(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com")

	assert.ErrorIs(t, f.accounts.ConfirmReset(ctx, "ada@example.com", "123456", "new-pass-1"), ErrInvalidCode, "no code issued")

	code, err := f.accounts.RequestReset(ctx, "ada@example.com")
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}
	assert.ErrorIs(t, f.accounts.ConfirmReset(ctx, "ada@example.com", wrong, "new-pass-1"), ErrInvalidCode)

	require.NoError(t, f.accounts.ConfirmReset(ctx, "ada@example.com", code, "new-pass-1"))

	_, err = f.accounts.Authenticate(ctx, "ada@example.com", "new-pass-1")
	assert.NoError(t, err)
	_, err = f.accounts.Authenticate(ctx, "ada@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	stored, err := f.users.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, stored.HasResetCode())
	assert.Nil(t, stored.ResetCodeHash)
	assert.Nil(t, stored.ResetCodeExpiresAt)

	assert.ErrorIs(t, f.accounts.ConfirmReset(ctx, "ada@example.com", code, "new-pass-2"), ErrInvalidCode, "codes are single use")
	assert.ErrorIs(t, f.accounts.ConfirmReset(ctx, "nobody@example.com", code, "new-pass-2"), ErrUserNotFound)
}

func TestConfirmResetExpired(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com")

	code, err := f.accounts.RequestReset(ctx, "ada@example.com")
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	err = f.accounts.ConfirmReset(ctx, "ada@example.com", code, "new-pass-1")
	assert.ErrorIs(t, err, ErrCodeExpired)

	stored, err := f.users.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, stored.HasResetCode(), "an expired code is discarded")

	err = f.accounts.ConfirmReset(ctx, "ada@example.com", code, "new-pass-1")
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = f.accounts.Authenticate(ctx, "ada@example.com", "s3cret-pass")
	assert.NoError(t, err, "password unchanged")
}

func TestRequestResetReplacesOutstandingCode(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com")

	first, err := f.accounts.RequestReset(ctx, "ada@example.com")
	require.NoError(t, err)
	second, err := f.accounts.RequestReset(ctx, "ada@example.com")
	require.NoError(t, err)

	if first != second {
		assert.ErrorIs(t, f.accounts.ConfirmReset(ctx, "ada@example.com", first, "new-pass-1"), ErrInvalidCode)
	}
	assert.NoError(t, f.accounts.ConfirmReset(ctx, "ada@example.com", second, "new-pass-1"))
}

func TestChangeSecret(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com")

	err := f.accounts.ChangeSecret(ctx, "ada@example.com", "not-it", "new-pass-1")
	assert.ErrorIs(t, err, ErrWrongOldSecret)

	require.NoError(t, f.accounts.ChangeSecret(ctx, "ada@example.com", "s3cret-pass", "new-pass-1"))
	_, err = f.accounts.Authenticate(ctx, "ada@example.com", "new-pass-1")
	assert.NoError(t, err)

	assert.ErrorIs(t, f.accounts.ChangeSecret(ctx, "nobody@example.com", "a", "b"), ErrUserNotFound)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com")
	f.register(t, "bob@example.com")

	_, err := f.accounts.UpdateProfile(ctx, "ada@example.com", ProfileInput{Name: "Ada", Email: "bob@example.com", Gender: "FEMALE"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.accounts.UpdateProfile(ctx, "ada@example.com", ProfileInput{Name: "Ada", Email: "ada@example.com", Gender: "robot"})
	assert.ErrorIs(t, err, ErrUnknownGender)

	u, err := f.accounts.UpdateProfile(ctx, "ada@example.com", ProfileInput{Name: "Ada L.", Email: "ada.l@example.com", Gender: "HOMME"})
	require.NoError(t, err)
	assert.Equal(t, "ada.l@example.com", u.Email)
	assert.Equal(t, models.GenderMale, u.Gender)

	_, err = f.accounts.Profile(ctx, "ada@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = f.accounts.Authenticate(ctx, "ada.l@example.com", "s3cret-pass")
	assert.NoError(t, err)
}

func TestAccountErrorsCarryKinds(t *testing.T) {
	var e *Error
	require.True(t, errors.As(error(ErrInvalidCode), &e))
	assert.Equal(t, 401, e.HTTPStatus())
	assert.Equal(t, 409, ErrEmailTaken.HTTPStatus())
	assert.Equal(t, 404, ErrUserNotFound.HTTPStatus())
	assert.Equal(t, 422, ErrUnknownGender.HTTPStatus())
}
