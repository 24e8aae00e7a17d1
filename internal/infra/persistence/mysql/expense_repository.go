package mysql

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/repository"
)

// expenseRepository implements the domain.ExpenseRepository interface using
// raw aggregate SQL over the externally-owned ledger tables. It never writes.
type expenseRepository struct {
	db *gorm.DB
}

// NewExpenseRepository is the constructor for expenseRepository.
func NewExpenseRepository(db *gorm.DB) repository.ExpenseRepository {
	return &expenseRepository{db: db}
}

// scopePredicate renders the authorization predicate for the given scope.
// column is the qualified created_by column name of the outer query.
func scopePredicate(scope entity.QueryScope, column string) (string, []any) {
	if scope.All {
		return "1 = 1", nil
	}

	return column + " = ?", []any{scope.UserID.String()}
}

type summaryRow struct {
	TotalAmount  decimal.Decimal `gorm:"column:total_amount"`
	TotalCount   int64           `gorm:"column:total_count"`
	AvgAmount    decimal.Decimal `gorm:"column:avg_amount"`
	EarliestDate *time.Time      `gorm:"column:earliest_date"`
	LatestDate   *time.Time      `gorm:"column:latest_date"`
}

// Summary aggregates every visible ledger row into a single figure set.
func (repo *expenseRepository) Summary(ctx context.Context, scope entity.QueryScope) (*entity.ExpenseSummary, error) {
	predicate, args := scopePredicate(scope, "created_by")

	row := &summaryRow{}
	err := repo.db.WithContext(ctx).Raw(`
		SELECT
			COALESCE(SUM(trans_amount), 0) AS total_amount,
			COALESCE(COUNT(id), 0) AS total_count,
			COALESCE(AVG(trans_amount), 0) AS avg_amount,
			MIN(trans_datetime) AS earliest_date,
			MAX(trans_datetime) AS latest_date
		FROM personal_expenses_final
		WHERE `+predicate, args...).Scan(row).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query expense summary")
	}

	return &entity.ExpenseSummary{
		TotalAmount:  row.TotalAmount,
		TotalCount:   row.TotalCount,
		AvgAmount:    row.AvgAmount,
		EarliestDate: row.EarliestDate,
		LatestDate:   row.LatestDate,
	}, nil
}

type monthlyRow struct {
	Year             string          `gorm:"column:year"`
	Month            string          `gorm:"column:month"`
	TransactionCount int64           `gorm:"column:transaction_count"`
	MonthlyTotal     decimal.Decimal `gorm:"column:monthly_total"`
	AvgTransaction   decimal.Decimal `gorm:"column:avg_transaction"`
}

// Monthly aggregates visible rows per calendar month, newest first.
func (repo *expenseRepository) Monthly(ctx context.Context, scope entity.QueryScope) ([]*entity.MonthlyExpense, error) {
	predicate, args := scopePredicate(scope, "created_by")

	var rows []monthlyRow
	err := repo.db.WithContext(ctx).Raw(`
		SELECT
			trans_year AS year,
			trans_month AS month,
			COUNT(id) AS transaction_count,
			SUM(trans_amount) AS monthly_total,
			AVG(trans_amount) AS avg_transaction
		FROM personal_expenses_final
		WHERE `+predicate+`
		GROUP BY trans_year, trans_month
		ORDER BY trans_year DESC, trans_month DESC`, args...).Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query monthly expenses")
	}

	result := make([]*entity.MonthlyExpense, 0, len(rows))
	for _, row := range rows {
		result = append(result, &entity.MonthlyExpense{
			Year:             row.Year,
			Month:            row.Month,
			TransactionCount: row.TransactionCount,
			MonthlyTotal:     row.MonthlyTotal,
			AvgTransaction:   row.AvgTransaction,
		})
	}

	return result, nil
}

type categoryRow struct {
	TransTypeName    string          `gorm:"column:trans_type_name"`
	TransSubTypeName string          `gorm:"column:trans_sub_type_name"`
	Count            int64           `gorm:"column:count"`
	TotalAmount      decimal.Decimal `gorm:"column:total_amount"`
	AvgAmount        decimal.Decimal `gorm:"column:avg_amount"`
}

// Categories aggregates visible rows per type/sub-type pair, biggest spend first.
func (repo *expenseRepository) Categories(ctx context.Context, scope entity.QueryScope) ([]*entity.CategoryExpense, error) {
	predicate, args := scopePredicate(scope, "pef.created_by")

	var rows []categoryRow
	err := repo.db.WithContext(ctx).Raw(`
		SELECT
			pet.trans_type_name,
			pet.trans_sub_type_name,
			COUNT(pef.id) AS count,
			SUM(pef.trans_amount) AS total_amount,
			AVG(pef.trans_amount) AS avg_amount
		FROM personal_expenses_final AS pef
		JOIN personal_expenses_type AS pet
			ON pef.trans_code = pet.trans_code AND pef.trans_sub_code = pet.trans_sub_code
		WHERE `+predicate+`
		GROUP BY pet.trans_type_name, pet.trans_sub_type_name
		ORDER BY total_amount DESC`, args...).Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query category expenses")
	}

	result := make([]*entity.CategoryExpense, 0, len(rows))
	for _, row := range rows {
		result = append(result, &entity.CategoryExpense{
			TypeName:    row.TransTypeName,
			SubTypeName: row.TransSubTypeName,
			Count:       row.Count,
			TotalAmount: row.TotalAmount,
			AvgAmount:   row.AvgAmount,
		})
	}

	return result, nil
}

type paymentMethodRow struct {
	PayAccount        string          `gorm:"column:pay_account"`
	UsageCount        int64           `gorm:"column:usage_count"`
	TotalSpent        decimal.Decimal `gorm:"column:total_spent"`
	AvgPerTransaction decimal.Decimal `gorm:"column:avg_per_transaction"`
}

// PaymentMethods aggregates visible rows per payment account, biggest spend first.
func (repo *expenseRepository) PaymentMethods(ctx context.Context, scope entity.QueryScope) ([]*entity.PaymentMethodUsage, error) {
	predicate, args := scopePredicate(scope, "created_by")

	var rows []paymentMethodRow
	err := repo.db.WithContext(ctx).Raw(`
		SELECT
			pay_account,
			COUNT(id) AS usage_count,
			SUM(trans_amount) AS total_spent,
			AVG(trans_amount) AS avg_per_transaction
		FROM personal_expenses_final
		WHERE `+predicate+`
		GROUP BY pay_account
		ORDER BY total_spent DESC`, args...).Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query payment method usage")
	}

	result := make([]*entity.PaymentMethodUsage, 0, len(rows))
	for _, row := range rows {
		result = append(result, &entity.PaymentMethodUsage{
			PayAccount:        row.PayAccount,
			UsageCount:        row.UsageCount,
			TotalSpent:        row.TotalSpent,
			AvgPerTransaction: row.AvgPerTransaction,
		})
	}

	return result, nil
}

type timelineRow struct {
	Date             string          `gorm:"column:date"`
	DailyTotal       decimal.Decimal `gorm:"column:daily_total"`
	TransactionCount int64           `gorm:"column:transaction_count"`
}

// Timeline aggregates visible rows per calendar day, oldest first.
func (repo *expenseRepository) Timeline(ctx context.Context, scope entity.QueryScope) ([]*entity.TimelinePoint, error) {
	predicate, args := scopePredicate(scope, "created_by")

	var rows []timelineRow
	err := repo.db.WithContext(ctx).Raw(`
		SELECT
			trans_date AS date,
			SUM(trans_amount) AS daily_total,
			COUNT(id) AS transaction_count
		FROM personal_expenses_final
		WHERE `+predicate+`
		GROUP BY trans_date
		ORDER BY trans_date ASC`, args...).Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query expense timeline")
	}

	result := make([]*entity.TimelinePoint, 0, len(rows))
	for _, row := range rows {
		result = append(result, &entity.TimelinePoint{
			Date:             row.Date,
			DailyTotal:       row.DailyTotal,
			TransactionCount: row.TransactionCount,
		})
	}

	return result, nil
}
