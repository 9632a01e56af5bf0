package internaldefs

import (
	goCred "github.com/MrEthical07/goCred"
)

// CounterDef binds a counter ID to its exported name.
type CounterDef struct {
	ID   goCred.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram ID to its exported name.
type HistogramDef struct {
	ID   goCred.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goCred.MetricRegisterSuccess, Name: "gocred_register_success_total", Help: "Successful registrations."},
	{ID: goCred.MetricRegisterFailure, Name: "gocred_register_failure_total", Help: "Failed registrations."},
	{ID: goCred.MetricRegisterDuplicate, Name: "gocred_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: goCred.MetricLoginSuccess, Name: "gocred_login_success_total", Help: "Successful authentications."},
	{ID: goCred.MetricLoginFailure, Name: "gocred_login_failure_total", Help: "Failed authentications."},
	{ID: goCred.MetricLoginRateLimited, Name: "gocred_login_rate_limited_total", Help: "Rate-limited authentications."},
	{ID: goCred.MetricPasswordUpgraded, Name: "gocred_password_upgraded_total", Help: "Password hashes upgraded on login."},
	{ID: goCred.MetricRefreshSuccess, Name: "gocred_refresh_success_total", Help: "Successful refresh operations."},
	{ID: goCred.MetricRefreshFailure, Name: "gocred_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: goCred.MetricValidateSuccess, Name: "gocred_validate_success_total", Help: "Access tokens that validated."},
	{ID: goCred.MetricValidateFailure, Name: "gocred_validate_failure_total", Help: "Access tokens that failed validation."},
	{ID: goCred.MetricPasswordChangeSuccess, Name: "gocred_password_change_success_total", Help: "Successful password changes."},
	{ID: goCred.MetricPasswordChangeFailure, Name: "gocred_password_change_failure_total", Help: "Failed password changes."},
	{ID: goCred.MetricRecoveryRequest, Name: "gocred_recovery_request_total", Help: "Recovery requests accepted."},
	{ID: goCred.MetricRecoveryRateLimited, Name: "gocred_recovery_rate_limited_total", Help: "Rate-limited recovery requests."},
	{ID: goCred.MetricRecoveryNotifyFailure, Name: "gocred_recovery_notify_failure_total", Help: "Recovery links that could not be delivered."},
	{ID: goCred.MetricResetSuccess, Name: "gocred_reset_success_total", Help: "Successful password resets."},
	{ID: goCred.MetricResetFailure, Name: "gocred_reset_failure_total", Help: "Failed password resets."},
	{ID: goCred.MetricResetExpired, Name: "gocred_reset_expired_total", Help: "Password resets with an expired token."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goCred.MetricValidateLatency, Name: "gocred_validate_latency_seconds", Help: "ValidateToken latency histogram."},
}

// HistogramBounds are the upper bounds in seconds of the validate latency
// buckets: 50µs, 100µs, 250µs, 500µs, 1ms, 2.5ms, 10ms and overflow.
var HistogramBounds = []string{
	"0.00005",
	"0.0001",
	"0.00025",
	"0.0005",
	"0.001",
	"0.0025",
	"0.01",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds spelled for instrument names.
var HistogramBoundSuffix = []string{
	"0_00005",
	"0_0001",
	"0_00025",
	"0_0005",
	"0_001",
	"0_0025",
	"0_01",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into Prometheus "le" counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
