package migrations

import (
	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/pkg/migration"
	"github.com/shashiranjanraj/storefront/pkg/queue"
)

func init() {
	migration.Register("20260101000004_create_failed_jobs_table", &CreateFailedJobsTable{})
}

type CreateFailedJobsTable struct{}

func (m *CreateFailedJobsTable) Up(tx *gorm.DB) error {
	return tx.Migrator().CreateTable(&queue.FailedJob{})
}

func (m *CreateFailedJobsTable) Down(tx *gorm.DB) error {
	return tx.Migrator().DropTable(&queue.FailedJob{})
}
