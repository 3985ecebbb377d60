// Package prometheus renders portal metrics in the Prometheus text
// exposition format.
//
// Counters are named dealerportal_*_total and the login latency histogram
// is dealerportal_login_latency_seconds. Nothing is registered globally:
// mount [Exporter.Handler] or call [Exporter.Render] directly.
package prometheus
