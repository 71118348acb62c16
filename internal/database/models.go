package database

import (
	"time"
)

// CaseLaw is an archived judgment: one filesystem folder plus one row.
// The composite unique index is the business key that prevents the same
// judgment being archived twice.
type CaseLaw struct {
	ID           uint   `json:"id" gorm:"primarykey"`
	Petitioner   string `json:"petitioner" gorm:"not null;uniqueIndex:idx_case_law_business_key"`
	Respondent   string `json:"respondent" gorm:"not null;uniqueIndex:idx_case_law_business_key"`
	Citation     string `json:"citation" gorm:"not null;uniqueIndex:idx_case_law_business_key"`
	PrimaryType  string `json:"primary_type" gorm:"not null;uniqueIndex:idx_case_law_business_key"`
	Subtype      string `json:"subtype" gorm:"not null;uniqueIndex:idx_case_law_business_key"`
	DecisionYear int    `json:"decision_year" gorm:"not null;uniqueIndex:idx_case_law_business_key"`
	FolderRel    string `json:"folder_rel" gorm:"not null"`
	FileName     string `json:"file_name" gorm:"not null"`
	NotePathRel  string `json:"note_path_rel" gorm:"not null"`
	NoteText     string `json:"note_text" gorm:"type:text;not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Invoice records a generated invoice PDF. InvoiceNumber is the business
// key; auto-assigned numbers are zero-padded digits but externally supplied
// numbers may be any non-empty string.
type Invoice struct {
	ID            uint    `json:"id" gorm:"primarykey"`
	InvoiceNumber string  `json:"invoice_number" gorm:"not null;uniqueIndex"`
	CaseYear      string  `json:"case_year"`
	CaseMonth     string  `json:"case_month"`
	CaseName      string  `json:"case_name"`
	FilePath      string  `json:"file_path" gorm:"not null"`
	PayloadJSON   string  `json:"payload_json" gorm:"type:text"`
	GeneratedBy   *uint   `json:"generated_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AppSetting is a simple key/value row; the invoice sequence counter
// lives here under a fixed key.
type AppSetting struct {
	Key   string `json:"key" gorm:"primarykey"`
	Value string `json:"value" gorm:"not null"`
}

func (CaseLaw) TableName() string {
	return "case_law"
}

func (Invoice) TableName() string {
	return "invoices"
}

func (AppSetting) TableName() string {
	return "app_settings"
}
