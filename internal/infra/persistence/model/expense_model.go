package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseFinalModel mirrors the 'personal_expenses_final' ledger table. The
// ledger is populated by an external pipeline; this service only reads it and
// never migrates or writes these tables.
type ExpenseFinalModel struct {
	ID            int64           `gorm:"primaryKey"`
	TransDatetime time.Time       `gorm:"column:trans_datetime"`
	TransDate     string          `gorm:"column:trans_date;type:varchar(10)"`
	TransYear     string          `gorm:"column:trans_year;type:varchar(4)"`
	TransMonth    string          `gorm:"column:trans_month;type:varchar(2)"`
	TransAmount   decimal.Decimal `gorm:"column:trans_amount;type:decimal(12,2)"`
	TransEvent    string          `gorm:"column:trans_event;type:varchar(255)"`
	TransCode     string          `gorm:"column:trans_code;type:varchar(16)"`
	TransSubCode  string          `gorm:"column:trans_sub_code;type:varchar(16)"`
	PayAccount    string          `gorm:"column:pay_account;type:varchar(64)"`
	CreatedBy     string          `gorm:"column:created_by;type:char(36)"`
	DeletedAt     int64           `gorm:"column:deleted_at"`
}

// TableName explicitly sets the table name for GORM.
func (ExpenseFinalModel) TableName() string {
	return "personal_expenses_final"
}

// ExpenseTypeModel mirrors the 'personal_expenses_type' dimension table.
type ExpenseTypeModel struct {
	TransCode        string `gorm:"column:trans_code;type:varchar(16);primaryKey"`
	TransSubCode     string `gorm:"column:trans_sub_code;type:varchar(16);primaryKey"`
	TransTypeName    string `gorm:"column:trans_type_name;type:varchar(64)"`
	TransSubTypeName string `gorm:"column:trans_sub_type_name;type:varchar(64)"`
}

// TableName explicitly sets the table name for GORM.
func (ExpenseTypeModel) TableName() string {
	return "personal_expenses_type"
}
