package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/LuJie0403/openclaw-expenses/internal/delivery/http/middleware"
	"github.com/LuJie0403/openclaw-expenses/internal/delivery/http/response"
	"github.com/LuJie0403/openclaw-expenses/internal/domain/entity"
	"github.com/LuJie0403/openclaw-expenses/internal/usecase"
)

const reportDateLayout = "2006-01-02"

// ReportHandler holds dependencies for the expense reporting handlers.
type ReportHandler struct {
	uc     usecase.ReportUsecase
	logger *slog.Logger
}

// NewReportHandler is the constructor for ReportHandler, injected by Fx.
func NewReportHandler(uc usecase.ReportUsecase, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{uc: uc, logger: logger}
}

// Amounts are rendered as JSON numbers, matching what chart libraries expect.

type summaryResponse struct {
	TotalAmount  float64 `json:"total_amount"`
	TotalCount   int64   `json:"total_count"`
	AvgAmount    float64 `json:"avg_amount"`
	EarliestDate *string `json:"earliest_date"`
	LatestDate   *string `json:"latest_date"`
}

type monthlyResponse struct {
	Year             string  `json:"year"`
	Month            string  `json:"month"`
	TransactionCount int64   `json:"transaction_count"`
	MonthlyTotal     float64 `json:"monthly_total"`
	AvgTransaction   float64 `json:"avg_transaction"`
}

type categoryResponse struct {
	TransTypeName    string  `json:"trans_type_name"`
	TransSubTypeName string  `json:"trans_sub_type_name"`
	Count            int64   `json:"count"`
	TotalAmount      float64 `json:"total_amount"`
	AvgAmount        float64 `json:"avg_amount"`
}

type paymentMethodResponse struct {
	PayAccount        string  `json:"pay_account"`
	UsageCount        int64   `json:"usage_count"`
	TotalSpent        float64 `json:"total_spent"`
	AvgPerTransaction float64 `json:"avg_per_transaction"`
}

type timelineResponse struct {
	Date             string  `json:"date"`
	DailyTotal       float64 `json:"daily_total"`
	TransactionCount int64   `json:"transaction_count"`
}

type graphResponse struct {
	Monthly    []*monthlyResponse  `json:"monthly"`
	Categories []*categoryResponse `json:"categories"`
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(reportDateLayout)

	return &s
}

func toMonthlyResponses(rows []*entity.MonthlyExpense) []*monthlyResponse {
	result := make([]*monthlyResponse, 0, len(rows))
	for _, row := range rows {
		result = append(result, &monthlyResponse{
			Year:             row.Year,
			Month:            row.Month,
			TransactionCount: row.TransactionCount,
			MonthlyTotal:     row.MonthlyTotal.InexactFloat64(),
			AvgTransaction:   row.AvgTransaction.InexactFloat64(),
		})
	}

	return result
}

func toCategoryResponses(rows []*entity.CategoryExpense) []*categoryResponse {
	result := make([]*categoryResponse, 0, len(rows))
	for _, row := range rows {
		result = append(result, &categoryResponse{
			TransTypeName:    row.TypeName,
			TransSubTypeName: row.SubTypeName,
			Count:            row.Count,
			TotalAmount:      row.TotalAmount.InexactFloat64(),
			AvgAmount:        row.AvgAmount.InexactFloat64(),
		})
	}

	return result
}

// Summary returns aggregate figures over the caller's visible ledger.
func (h *ReportHandler) Summary(c echo.Context) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return errors.WithStack(err)
	}

	summary, err := h.uc.Summary(c.Request().Context(), user)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, &summaryResponse{
		TotalAmount:  summary.TotalAmount.InexactFloat64(),
		TotalCount:   summary.TotalCount,
		AvgAmount:    summary.AvgAmount.InexactFloat64(),
		EarliestDate: formatDate(summary.EarliestDate),
		LatestDate:   formatDate(summary.LatestDate),
	}, "")
}

// Monthly returns the month-by-month aggregation.
func (h *ReportHandler) Monthly(c echo.Context) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return errors.WithStack(err)
	}

	rows, err := h.uc.Monthly(c.Request().Context(), user)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toMonthlyResponses(rows), "")
}

// Categories returns the category aggregation.
func (h *ReportHandler) Categories(c echo.Context) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return errors.WithStack(err)
	}

	rows, err := h.uc.Categories(c.Request().Context(), user)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toCategoryResponses(rows), "")
}

// PaymentMethods returns the payment account aggregation.
func (h *ReportHandler) PaymentMethods(c echo.Context) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return errors.WithStack(err)
	}

	rows, err := h.uc.PaymentMethods(c.Request().Context(), user)
	if err != nil {
		return errors.WithStack(err)
	}

	result := make([]*paymentMethodResponse, 0, len(rows))
	for _, row := range rows {
		result = append(result, &paymentMethodResponse{
			PayAccount:        row.PayAccount,
			UsageCount:        row.UsageCount,
			TotalSpent:        row.TotalSpent.InexactFloat64(),
			AvgPerTransaction: row.AvgPerTransaction.InexactFloat64(),
		})
	}

	return response.Success(c, http.StatusOK, result, "")
}

// Timeline returns the day-by-day aggregation.
func (h *ReportHandler) Timeline(c echo.Context) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return errors.WithStack(err)
	}

	rows, err := h.uc.Timeline(c.Request().Context(), user)
	if err != nil {
		return errors.WithStack(err)
	}

	result := make([]*timelineResponse, 0, len(rows))
	for _, row := range rows {
		result = append(result, &timelineResponse{
			Date:             row.Date,
			DailyTotal:       row.DailyTotal.InexactFloat64(),
			TransactionCount: row.TransactionCount,
		})
	}

	return response.Success(c, http.StatusOK, result, "")
}

// Graph returns the combined chart payload.
func (h *ReportHandler) Graph(c echo.Context) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return errors.WithStack(err)
	}

	graph, err := h.uc.Graph(c.Request().Context(), user)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, &graphResponse{
		Monthly:    toMonthlyResponses(graph.Monthly),
		Categories: toCategoryResponses(graph.Categories),
	}, "")
}
