package analysis

import (
	"time"

	"github.com/shopspring/decimal"
)

// Row is one parsed transaction line.
type Row struct {
	TransactionID string
	Date          time.Time
	Amount        decimal.Decimal
	Category      string
}

// Report is the result of analysing one uploaded batch.
// AverageAmount and MedianAmount are invalid (JSON null) for an empty batch.
type Report struct {
	TotalTransactions int                      `json:"total_transactions"`
	TotalAmount       decimal.Decimal          `json:"total_amount"`
	AverageAmount     decimal.NullDecimal      `json:"average_amount"`
	MedianAmount      decimal.NullDecimal      `json:"median_amount"`
	Outliers          Outliers                 `json:"outliers"`
	CategorySummary   map[string]CategoryStats `json:"category_summary"`
	MonthlyTrends     map[string]MonthlyTrend  `json:"monthly_trends"`
}

// Empty reports whether the batch had a header but no rows.
func (r *Report) Empty() bool {
	return r.TotalTransactions == 0
}

// Outliers lists transactions outside the 1.5*IQR fences, in input order.
type Outliers struct {
	Count        int      `json:"count"`
	Transactions []string `json:"transactions"`
}

// CategoryStats aggregates the amounts of one category. Sum, Mean and
// Median are rounded to 2 decimal places.
type CategoryStats struct {
	Count  int             `json:"count"`
	Sum    decimal.Decimal `json:"sum"`
	Mean   decimal.Decimal `json:"mean"`
	Median decimal.Decimal `json:"median"`
}

// MonthlyTrend aggregates the amounts of one calendar month.
type MonthlyTrend struct {
	Sum   decimal.Decimal `json:"sum"`
	Count int             `json:"count"`
}
