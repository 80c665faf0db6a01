// Package units provides canonical unit conversions for offer normalization.
// Every collector emits USD-per-hour prices and GB sizes; these helpers hold
// the conversion constants in one place.
package units

// BillingPeriod represents the period a provider quotes a price for.
type BillingPeriod string

const (
	PeriodHourly    BillingPeriod = "hourly"
	PeriodDaily     BillingPeriod = "daily"
	PeriodWeekly    BillingPeriod = "weekly"
	PeriodMonthly   BillingPeriod = "monthly"
	PeriodPerMinute BillingPeriod = "per_minute"
)

// HoursPerMonth is the flat-month assumption (30 days) used when providers
// quote monthly prices.
const HoursPerMonth = 24 * 30

// EURToUSD is the fixed conversion rate applied to EUR-quoted pages.
const EURToUSD = 1.10

// ToHourly converts a price quoted for the given period into a per-hour rate.
func ToHourly(price float64, period BillingPeriod) float64 {
	switch period {
	case PeriodMonthly:
		return price / HoursPerMonth
	case PeriodWeekly:
		return price / (24 * 7)
	case PeriodDaily:
		return price / 24
	case PeriodPerMinute:
		return price * 60
	default:
		return price
	}
}

// MBToGB converts megabytes to gigabytes.
func MBToGB(mb float64) float64 {
	return mb / 1024
}

// TBToGB converts terabytes to gigabytes.
func TBToGB(tb float64) float64 {
	return tb * 1024
}
