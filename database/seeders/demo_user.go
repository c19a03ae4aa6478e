package seeders

import (
	"context"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/pkg/auth"
)

const (
	DemoEmail    = "demo@storefront.local"
	DemoPassword = "demo-password"
)

func init() {
	Register("demo_user", seedDemoUser)
}

func seedDemoUser(ctx context.Context, db *gorm.DB) error {
	users := repositories.NewUserRepository(db)
	exists, err := users.EmailExists(ctx, DemoEmail)
	if err != nil || exists {
		return err
	}

	hash, err := auth.NewPasswordHasher(0).Hash(DemoPassword)
	if err != nil {
		return err
	}
	return users.Create(ctx, &models.User{
		Name:         "Demo Customer",
		Email:        DemoEmail,
		PasswordHash: hash,
		Gender:       models.GenderFemale,
	})
}
