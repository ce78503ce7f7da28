package model

import "time"

// Account purposes distinguish who an account belongs to and what it is
// allowed to host.
const (
	PurposeClient    = "client"    // tenant account owning datasets
	PurposeResources = "resources" // shared account hosting provisioned resources
	PurposeSecurity  = "security"  // platform account owning encryption keys
)

// Account represents an account registered with the platform. Stage is
// only set for resources accounts, which exist once per hub and stage.
type Account struct {
	ID        string    `gorm:"column:account_id;primaryKey"`
	Purpose   string    `gorm:"column:purpose;not null"`
	Hub       string    `gorm:"column:hub;not null"`
	Stage     string    `gorm:"column:stage"`
	Partition string    `gorm:"column:partition;not null;default:aws"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Account) TableName() string {
	return "accounts"
}
