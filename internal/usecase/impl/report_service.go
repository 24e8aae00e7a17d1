package impl

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"go.uber.org/fx"

	deliverycontext "github.com/LuJie0403/openclaw-expenses/internal/delivery/context"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/repository"
	"github.com/LuJie0403/openclaw-expenses/internal/usecase"
)

// reportService implements the ReportUsecase interface. It is a thin
// authorization-aware layer over the aggregate queries: the query scope is
// derived once from the authenticated user and threaded into every query.
type reportService struct {
	expenseRepo repository.ExpenseRepository
	logger      *slog.Logger
}

// ReportServiceParams holds dependencies for reportService, injected by Fx.
type ReportServiceParams struct {
	fx.In

	ExpenseRepo repository.ExpenseRepository
	Logger      *slog.Logger
}

// NewReportService is the constructor for reportService.
func NewReportService(params ReportServiceParams) usecase.ReportUsecase {
	return &reportService{
		expenseRepo: params.ExpenseRepo,
		logger:      params.Logger,
	}
}

func (srv *reportService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Summary returns the aggregate figures over the caller's visible ledger.
func (srv *reportService) Summary(ctx context.Context, user *entity.User) (*entity.ExpenseSummary, error) {
	summary, err := srv.expenseRepo.Summary(ctx, entity.ScopeFor(user))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build expense summary")
	}

	return summary, nil
}

// Monthly returns the per-month aggregation, newest month first.
func (srv *reportService) Monthly(ctx context.Context, user *entity.User) ([]*entity.MonthlyExpense, error) {
	rows, err := srv.expenseRepo.Monthly(ctx, entity.ScopeFor(user))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build monthly report")
	}

	return rows, nil
}

// Categories returns the per-category aggregation, biggest spend first.
func (srv *reportService) Categories(ctx context.Context, user *entity.User) ([]*entity.CategoryExpense, error) {
	rows, err := srv.expenseRepo.Categories(ctx, entity.ScopeFor(user))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build category report")
	}

	return rows, nil
}

// PaymentMethods returns the per-account aggregation, biggest spend first.
func (srv *reportService) PaymentMethods(ctx context.Context, user *entity.User) ([]*entity.PaymentMethodUsage, error) {
	rows, err := srv.expenseRepo.PaymentMethods(ctx, entity.ScopeFor(user))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build payment method report")
	}

	return rows, nil
}

// Timeline returns the per-day aggregation, oldest day first.
func (srv *reportService) Timeline(ctx context.Context, user *entity.User) ([]*entity.TimelinePoint, error) {
	rows, err := srv.expenseRepo.Timeline(ctx, entity.ScopeFor(user))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build timeline report")
	}

	return rows, nil
}

// Graph combines the monthly trend and the category breakdown into a single
// chart-ready payload so the frontend renders both from one request.
func (srv *reportService) Graph(ctx context.Context, user *entity.User) (*usecase.GraphOutput, error) {
	scope := entity.ScopeFor(user)

	monthly, err := srv.expenseRepo.Monthly(ctx, scope)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build graph monthly series")
	}

	categories, err := srv.expenseRepo.Categories(ctx, scope)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build graph category series")
	}

	srv.log(ctx).Debug("graph payload built",
		slog.Int("months", len(monthly)),
		slog.Int("categories", len(categories)))

	return &usecase.GraphOutput{
		Monthly:    monthly,
		Categories: categories,
	}, nil
}
