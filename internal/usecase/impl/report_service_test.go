package impl

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"
	"github.com/LuJie0403/openclaw-expenses/internal/usecase"
)

// scopeRecordingExpenseRepo records the scope each query was issued with.
type scopeRecordingExpenseRepo struct {
	lastScope  entity.QueryScope
	monthly    []*entity.MonthlyExpense
	categories []*entity.CategoryExpense
}

func (r *scopeRecordingExpenseRepo) Summary(_ context.Context, scope entity.QueryScope) (*entity.ExpenseSummary, error) {
	r.lastScope = scope

	return &entity.ExpenseSummary{TotalCount: 3, TotalAmount: decimal.NewFromInt(120)}, nil
}

func (r *scopeRecordingExpenseRepo) Monthly(_ context.Context, scope entity.QueryScope) ([]*entity.MonthlyExpense, error) {
	r.lastScope = scope

	return r.monthly, nil
}

func (r *scopeRecordingExpenseRepo) Categories(_ context.Context, scope entity.QueryScope) ([]*entity.CategoryExpense, error) {
	r.lastScope = scope

	return r.categories, nil
}

func (r *scopeRecordingExpenseRepo) PaymentMethods(_ context.Context, scope entity.QueryScope) ([]*entity.PaymentMethodUsage, error) {
	r.lastScope = scope

	return nil, nil
}

func (r *scopeRecordingExpenseRepo) Timeline(_ context.Context, scope entity.QueryScope) ([]*entity.TimelinePoint, error) {
	r.lastScope = scope

	return nil, nil
}

func newReportFixture() (usecase.ReportUsecase, *scopeRecordingExpenseRepo) {
	repo := &scopeRecordingExpenseRepo{
		monthly:    []*entity.MonthlyExpense{{Year: "2025", Month: "05"}},
		categories: []*entity.CategoryExpense{{TypeName: "餐饮"}},
	}
	svc := NewReportService(ReportServiceParams{
		ExpenseRepo: repo,
		Logger:      discardLogger(),
	})

	return svc, repo
}

func TestReportService_ScopesToOwnRows(t *testing.T) {
	svc, repo := newReportFixture()
	user := &entity.User{ID: uuid.New(), Username: "alice"}

	_, err := svc.Summary(context.Background(), user)
	require.NoError(t, err)
	assert.False(t, repo.lastScope.All)
	assert.Equal(t, user.ID, repo.lastScope.UserID)
}

func TestReportService_AdminSeesAllRows(t *testing.T) {
	svc, repo := newReportFixture()
	admin := &entity.User{ID: uuid.New(), Username: entity.AdminUsername}

	_, err := svc.Summary(context.Background(), admin)
	require.NoError(t, err)
	assert.True(t, repo.lastScope.All)
}

func TestReportService_AdminByUsernameNotID(t *testing.T) {
	svc, repo := newReportFixture()
	// An account merely named like the admin id does not bypass scoping;
	// only the distinguished username does.
	user := &entity.User{ID: uuid.New(), Username: "administrator"}

	_, err := svc.Timeline(context.Background(), user)
	require.NoError(t, err)
	assert.False(t, repo.lastScope.All)
}

func TestReportService_Graph(t *testing.T) {
	svc, _ := newReportFixture()
	user := &entity.User{ID: uuid.New(), Username: "alice"}

	out, err := svc.Graph(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, out.Monthly, 1)
	require.Len(t, out.Categories, 1)
	assert.Equal(t, "2025", out.Monthly[0].Year)
	assert.Equal(t, "餐饮", out.Categories[0].TypeName)
}
