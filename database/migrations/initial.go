package migrations

import (
	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/pkg/migration"
)

func init() {
	migration.Register("20260101000000_create_users_table", &CreateUsersTable{})
	migration.Register("20260101000001_create_orders_table", &CreateOrdersTable{})
	migration.Register("20260101000002_create_order_items_table", &CreateOrderItemsTable{})
	migration.Register("20260101000003_index_orders_payment_intent", &IndexOrdersPaymentIntent{})
}

type CreateUsersTable struct{}

func (m *CreateUsersTable) Up(tx *gorm.DB) error {
	return tx.Migrator().CreateTable(&models.User{})
}

func (m *CreateUsersTable) Down(tx *gorm.DB) error {
	return tx.Migrator().DropTable(&models.User{})
}

type CreateOrdersTable struct{}

func (m *CreateOrdersTable) Up(tx *gorm.DB) error {
	return tx.Migrator().CreateTable(&models.Order{})
}

func (m *CreateOrdersTable) Down(tx *gorm.DB) error {
	return tx.Migrator().DropTable(&models.Order{})
}

type CreateOrderItemsTable struct{}

func (m *CreateOrderItemsTable) Up(tx *gorm.DB) error {
	return tx.Migrator().CreateTable(&models.OrderItem{})
}

func (m *CreateOrderItemsTable) Down(tx *gorm.DB) error {
	return tx.Migrator().DropTable(&models.OrderItem{})
}

// IndexOrdersPaymentIntent makes payment_intent_id unique among non-null
// values. MySQL already ignores NULLs in unique indexes; the other engines
// need a partial (filtered) index.
type IndexOrdersPaymentIntent struct{}

const paymentIntentIndex = "idx_orders_payment_intent_id"

func (m *IndexOrdersPaymentIntent) Up(tx *gorm.DB) error {
	if tx.Dialector.Name() == "mysql" {
		return tx.Exec("CREATE UNIQUE INDEX " + paymentIntentIndex + " ON orders (payment_intent_id)").Error
	}
	return tx.Exec("CREATE UNIQUE INDEX " + paymentIntentIndex + " ON orders (payment_intent_id) WHERE payment_intent_id IS NOT NULL").Error
}

func (m *IndexOrdersPaymentIntent) Down(tx *gorm.DB) error {
	return tx.Migrator().DropIndex(&models.Order{}, paymentIntentIndex)
}
