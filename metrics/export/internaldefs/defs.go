package internaldefs

import (
	dealerportal "github.com/askgroup/dealerportal"
)

// Def names one exported series.
type Def struct {
	ID   dealerportal.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for events lost to dispatcher backpressure.
const AuditDroppedName = "dealerportal_audit_dropped_total"

var CounterDefs = []Def{
	{ID: dealerportal.MetricLoginSuccess, Name: "dealerportal_login_success_total", Help: "Successful logins."},
	{ID: dealerportal.MetricLoginFailure, Name: "dealerportal_login_failure_total", Help: "Failed logins."},
	{ID: dealerportal.MetricRegisterSuccess, Name: "dealerportal_register_success_total", Help: "Successful registrations."},
	{ID: dealerportal.MetricRegisterFailure, Name: "dealerportal_register_failure_total", Help: "Failed registrations."},
	{ID: dealerportal.MetricPasswordResetSuccess, Name: "dealerportal_password_reset_success_total", Help: "Successful password resets."},
	{ID: dealerportal.MetricPasswordResetFailure, Name: "dealerportal_password_reset_failure_total", Help: "Failed password resets."},
	{ID: dealerportal.MetricLogout, Name: "dealerportal_logout_total", Help: "User-initiated logouts."},
	{ID: dealerportal.MetricForcedLogout, Name: "dealerportal_forced_logout_total", Help: "Sessions ended by a 401 from the API."},
	{ID: dealerportal.MetricRestoreSuccess, Name: "dealerportal_restore_success_total", Help: "Sessions restored from storage at startup."},
	{ID: dealerportal.MetricRestoreInvalid, Name: "dealerportal_restore_invalid_total", Help: "Stored tokens discarded at startup."},
	{ID: dealerportal.MetricCheckoutSuccess, Name: "dealerportal_checkout_success_total", Help: "Carts turned into purchase orders."},
	{ID: dealerportal.MetricCheckoutFailure, Name: "dealerportal_checkout_failure_total", Help: "Failed checkouts."},
}

var HistogramDefs = []Def{
	{ID: dealerportal.MetricLoginLatency, Name: "dealerportal_login_latency_seconds", Help: "Login round-trip latency."},
}

// BucketCount matches the histogram layout of dealerportal.Metrics.
const BucketCount = 8

// HistogramBounds are the upper bounds in seconds, as Prometheus le labels.
var HistogramBounds = [BucketCount]string{"0.05", "0.1", "0.25", "0.5", "1", "2.5", "5", "+Inf"}

// HistogramBoundSuffix renders HistogramBounds into instrument-name-safe text.
var HistogramBoundSuffix = [BucketCount]string{"0_05", "0_1", "0_25", "0_5", "1", "2_5", "5", "inf"}

// Cumulative converts raw per-bucket counts into cumulative counts.
// Short or missing input is treated as zeros.
func Cumulative(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
