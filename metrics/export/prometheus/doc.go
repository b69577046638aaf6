// Package prometheus renders the gateway's session metrics in Prometheus text format.
//
// Counters are named storefront_*_total and the transition histogram is
// storefront_session_transition_seconds. Nothing is registered globally; mount
// [Exporter.Handler] where the scraper expects it.
package prometheus
