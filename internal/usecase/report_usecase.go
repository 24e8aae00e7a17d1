package usecase

import (
	"context"

	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"
)

// GraphOutput combines the monthly trend and category breakdown into one
// chart-ready payload.
type GraphOutput struct {
	Monthly    []*entity.MonthlyExpense
	Categories []*entity.CategoryExpense
}

// ReportUsecase defines the read-only reporting operations over the expense
// ledger. Every method derives the caller's query scope from the
// authenticated user: the admin account sees all rows, everyone else only
// their own.
type ReportUsecase interface {
	Summary(ctx context.Context, user *entity.User) (*entity.ExpenseSummary, error)
	Monthly(ctx context.Context, user *entity.User) ([]*entity.MonthlyExpense, error)
	Categories(ctx context.Context, user *entity.User) ([]*entity.CategoryExpense, error)
	PaymentMethods(ctx context.Context, user *entity.User) ([]*entity.PaymentMethodUsage, error)
	Timeline(ctx context.Context, user *entity.User) ([]*entity.TimelinePoint, error)
	Graph(ctx context.Context, user *entity.User) (*GraphOutput, error)
}
