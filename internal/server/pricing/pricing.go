// Package pricing converts a rental duration into an amount using the
// vehicle's day and month rates.
//
// Rules:
//   - duration is counted in whole days, rounded up;
//   - under 30 days the day rate applies per day;
//   - from 30 days the month rate applies per 30 days, prorated by day, but never
//     below the price of 29 days at the day rate, so longer rentals never cost less;
//   - amounts are rounded to 2 places, half away from zero.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	day          = 24 * time.Hour
	daysPerMonth = 30
)

var month = decimal.NewFromInt(daysPerMonth)

// Days returns the number of started days between start and end; 0 when end
// is not after start.
func Days(start, end time.Time) int64 {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	days := int64(d / day)
	if d%day != 0 {
		days++
	}
	return days
}

// Price returns the amount due for renting from start to end.
func Price(dayRate, monthRate decimal.Decimal, start, end time.Time) decimal.Decimal {
	return ForDays(dayRate, monthRate, Days(start, end))
}

// ForDays returns the amount due for the given number of days.
func ForDays(dayRate, monthRate decimal.Decimal, days int64) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	n := decimal.NewFromInt(days)
	if days < daysPerMonth {
		return Round(dayRate.Mul(n))
	}

	amount := monthRate.Mul(n).Div(month)
	if floor := dayRate.Mul(decimal.NewFromInt(daysPerMonth - 1)); amount.LessThan(floor) {
		amount = floor
	}
	return Round(amount)
}

// Round applies the money rounding rule.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
