package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QueryScope is the authorization predicate for ledger queries, computed once
// per request and threaded into the repository layer. Either it covers every
// row (admin) or only the rows created by one account.
type QueryScope struct {
	All    bool
	UserID uuid.UUID
}

// ScopeAll returns the unrestricted scope granted to the admin account.
func ScopeAll() QueryScope {
	return QueryScope{All: true}
}

// ScopeOwned returns the scope restricted to rows owned by the given account.
func ScopeOwned(userID uuid.UUID) QueryScope {
	return QueryScope{UserID: userID}
}

// ScopeFor derives the query scope for an authenticated user.
func ScopeFor(user *User) QueryScope {
	if user.IsAdmin() {
		return ScopeAll()
	}

	return ScopeOwned(user.ID)
}

// ExpenseSummary aggregates the whole visible ledger.
type ExpenseSummary struct {
	TotalAmount  decimal.Decimal
	TotalCount   int64
	AvgAmount    decimal.Decimal
	EarliestDate *time.Time
	LatestDate   *time.Time
}

// MonthlyExpense aggregates one calendar month.
type MonthlyExpense struct {
	Year             string
	Month            string
	TransactionCount int64
	MonthlyTotal     decimal.Decimal
	AvgTransaction   decimal.Decimal
}

// CategoryExpense aggregates one transaction type/sub-type pair.
type CategoryExpense struct {
	TypeName    string
	SubTypeName string
	Count       int64
	TotalAmount decimal.Decimal
	AvgAmount   decimal.Decimal
}

// PaymentMethodUsage aggregates one payment account.
type PaymentMethodUsage struct {
	PayAccount        string
	UsageCount        int64
	TotalSpent        decimal.Decimal
	AvgPerTransaction decimal.Decimal
}

// TimelinePoint aggregates one calendar day.
type TimelinePoint struct {
	Date             string
	DailyTotal       decimal.Decimal
	TransactionCount int64
}
