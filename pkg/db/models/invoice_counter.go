package models

import "time"

// InvoiceCounter holds the last allocated invoice sequence per calendar year.
// Allocation happens with a single upsert so concurrent finalizations never
// observe the same sequence.
type InvoiceCounter struct {
	Year      int       `gorm:"column:year;primaryKey"`
	LastSeq   int64     `gorm:"column:last_seq;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
