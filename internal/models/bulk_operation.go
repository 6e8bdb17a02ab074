package models

import (
	"time"

	"gorm.io/gorm"
)

// BulkOperation is one CSV import or export run by a user.
type BulkOperation struct {
	gorm.Model
	UserID                uint       `json:"user_id" gorm:"not null;index"`
	IsUpload              bool       `json:"is_upload"`
	Completed             bool       `json:"completed"`
	FileName              string     `json:"file_name"`
	StorageKey            string     `json:"storage_key"`
	RowCount              int        `json:"row_count"`
	ErrorCount            int        `json:"error_count"`
	RowErrors             StringList `json:"row_errors"`
	LastExportedTimestamp *time.Time `json:"last_exported_timestamp"`
}

func (BulkOperation) TableName() string {
	return "bulk_operations"
}
