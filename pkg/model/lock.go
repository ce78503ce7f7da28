package model

import "time"

// LockEntry is the catalog row backing an advisory lock. The primary key
// makes the conditional insert in the locks store exclusive per lock ID.
type LockEntry struct {
	LockID    string    `gorm:"column:lock_id;primaryKey"`
	Scope     string    `gorm:"column:scope;not null"`
	Timestamp time.Time `gorm:"column:timestamp;not null"`
	Data      string    `gorm:"column:data"` // JSON annotation, optional
	RequestID string    `gorm:"column:request_id"`
}

func (LockEntry) TableName() string {
	return "locks"
}
