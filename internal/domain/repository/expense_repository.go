package repository

import (
	"context"

	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"
)

// ExpenseRepository reads aggregate views over the transaction ledger. The
// ledger tables are owned by an external collaborator; this interface is
// read-only and every query is bounded by the caller's QueryScope.
type ExpenseRepository interface {
	Summary(ctx context.Context, scope entity.QueryScope) (*entity.ExpenseSummary, error)
	Monthly(ctx context.Context, scope entity.QueryScope) ([]*entity.MonthlyExpense, error)
	Categories(ctx context.Context, scope entity.QueryScope) ([]*entity.CategoryExpense, error)
	PaymentMethods(ctx context.Context, scope entity.QueryScope) ([]*entity.PaymentMethodUsage, error)
	Timeline(ctx context.Context, scope entity.QueryScope) ([]*entity.TimelinePoint, error)
}
