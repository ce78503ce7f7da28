package model

import "time"

// Stages a resource can be provisioned for.
const (
	StageDev  = "dev"
	StageInt  = "int"
	StageProd = "prod"
)

// ValidStage reports whether s names a known stage.
func ValidStage(s string) bool {
	switch s {
	case StageDev, StageInt, StageProd:
		return true
	}
	return false
}

// Resource represents a provisioned storage resource. One dataset has at
// most one resource per (stage, region).
type Resource struct {
	DatasetID         string    `gorm:"column:dataset_id;primaryKey"`
	Stage             string    `gorm:"column:stage;primaryKey"`
	Region            string    `gorm:"column:region;primaryKey"`
	Hub               string    `gorm:"column:hub;not null"`
	ResourceAccountID string    `gorm:"column:resource_account_id;not null"`
	OwnerAccountID    string    `gorm:"column:owner_account_id;not null"`
	ARN               string    `gorm:"column:arn;not null"`
	KMSKeyARN         string    `gorm:"column:kms_key_arn;not null"`
	SNSTopicARN       string    `gorm:"column:sns_topic_arn;not null"`
	CreatorUserID     string    `gorm:"column:creator_user_id"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Resource) TableName() string {
	return "resources"
}

// Name returns the physical bucket name the resource ARN points at.
func (r Resource) Name() string {
	for i := len(r.ARN) - 1; i >= 0; i-- {
		if r.ARN[i] == ':' {
			return r.ARN[i+1:]
		}
	}
	return r.ARN
}
