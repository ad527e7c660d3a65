// Package analysis computes the statistical report for an uploaded CSV of
// transactions. It is pure: it reads the source once and never touches the
// upload record.
package analysis

import (
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Analyze parses the CSV in r and builds its report.
//
// Errors wrap ErrParse, ErrValidation or ErrComputation. A panic raised
// while analysing is recovered and returned as ErrComputation.
func Analyze(r io.Reader) (report *Report, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			report = nil
			err = fmt.Errorf("%w: %v", ErrComputation, rec)
		}
	}()

	rows, err := ReadRows(r)
	if err != nil {
		return nil, err
	}

	return Summarize(rows), nil
}

// Summarize aggregates already-coerced rows.
func Summarize(rows []Row) *Report {
	amounts := make([]decimal.Decimal, len(rows))
	for i, row := range rows {
		amounts[i] = row.Amount
	}

	return &Report{
		TotalTransactions: len(rows),
		TotalAmount:       sum(amounts),
		AverageAmount:     mean(amounts),
		MedianAmount:      median(amounts),
		Outliers:          detectOutliers(rows, amounts),
		CategorySummary:   categorySummary(rows),
		MonthlyTrends:     monthlyTrends(rows),
	}
}

func detectOutliers(rows []Row, amounts []decimal.Decimal) Outliers {
	out := Outliers{Transactions: []string{}}
	if len(rows) == 0 {
		return out
	}

	lower, upper := iqrFences(amounts)
	for _, row := range rows {
		if row.Amount.LessThan(lower) || row.Amount.GreaterThan(upper) {
			out.Transactions = append(out.Transactions, row.TransactionID)
		}
	}
	out.Count = len(out.Transactions)
	return out
}

func categorySummary(rows []Row) map[string]CategoryStats {
	groups := make(map[string][]decimal.Decimal)
	for _, row := range rows {
		groups[row.Category] = append(groups[row.Category], row.Amount)
	}

	summary := make(map[string]CategoryStats, len(groups))
	for category, amounts := range groups {
		summary[category] = CategoryStats{
			Count:  len(amounts),
			Sum:    round2(sum(amounts)),
			Mean:   round2(mean(amounts).Decimal),
			Median: round2(median(amounts).Decimal),
		}
	}
	return summary
}

func monthlyTrends(rows []Row) map[string]MonthlyTrend {
	trends := make(map[string]MonthlyTrend)
	for _, row := range rows {
		key := MonthEnd(row.Date).String()
		bucket := trends[key]
		if bucket.Count == 0 {
			bucket.Sum = decimal.Zero
		}
		bucket.Sum = bucket.Sum.Add(row.Amount)
		bucket.Count++
		trends[key] = bucket
	}
	return trends
}

// MonthEnd returns the last calendar day of t's month, in t's location.
// Monthly buckets are labelled with this date.
func MonthEnd(t time.Time) civil.Date {
	return civil.DateOf(time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()))
}

// round2 rounds half to even, matching numpy's round.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}
