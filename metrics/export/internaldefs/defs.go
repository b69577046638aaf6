package internaldefs

import (
	storeAuth "github.com/MrEthical07/storeAuth"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   storeAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   storeAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: storeAuth.MetricLoginSuccess, Name: "storefront_login_success_total", Help: "Password logins accepted by the backend."},
	{ID: storeAuth.MetricLoginFailure, Name: "storefront_login_failure_total", Help: "Password logins refused or failed in transport."},
	{ID: storeAuth.MetricLoginRateLimited, Name: "storefront_login_rate_limited_total", Help: "Password logins stopped by the throttle."},
	{ID: storeAuth.MetricGoogleLoginSuccess, Name: "storefront_google_login_success_total", Help: "Google sign-ins exchanged for a session."},
	{ID: storeAuth.MetricGoogleLoginFailure, Name: "storefront_google_login_failure_total", Help: "Google sign-ins the backend refused."},
	{ID: storeAuth.MetricSessionCreated, Name: "storefront_session_created_total", Help: "Sessions persisted by login."},
	{ID: storeAuth.MetricSessionRestored, Name: "storefront_session_restored_total", Help: "Status checks that found a stored session."},
	{ID: storeAuth.MetricSessionAbsent, Name: "storefront_session_absent_total", Help: "Status checks that found no session."},
	{ID: storeAuth.MetricLogout, Name: "storefront_logout_total", Help: "Logout transitions."},
	{ID: storeAuth.MetricTokenDecodeFailure, Name: "storefront_token_decode_failure_total", Help: "Tokens whose payload could not be decoded."},
	{ID: storeAuth.MetricStoreFailure, Name: "storefront_session_store_failure_total", Help: "Session storage errors seen by transitions."},
	{ID: storeAuth.MetricGuardAllow, Name: "storefront_guard_allow_total", Help: "Guarded requests let through."},
	{ID: storeAuth.MetricGuardPending, Name: "storefront_guard_pending_total", Help: "Guarded requests answered while the session was loading."},
	{ID: storeAuth.MetricGuardRedirect, Name: "storefront_guard_redirect_total", Help: "Guarded requests redirected to login."},
	{ID: storeAuth.MetricGuardDeny, Name: "storefront_guard_deny_total", Help: "Guarded requests denied for their role."},
	{ID: storeAuth.MetricUpstreamUnauthorized, Name: "storefront_upstream_unauthorized_total", Help: "Proxied calls the backend rejected with 401 or 403."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: storeAuth.MetricTransitionLatency, Name: "storefront_session_transition_seconds", Help: "Session transition latency."},
}

// ActiveSessionsName is the gauge of live session managers.
const (
	ActiveSessionsName = "storefront_active_sessions"
	ActiveSessionsHelp = "Session managers currently held by the provider."
)

// AuditDroppedName is the counter of audit events lost to a full dispatcher buffer.
const (
	AuditDroppedName = "storefront_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

// HistogramBounds are the upper bounds of the latency buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
