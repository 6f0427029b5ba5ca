package domain

// UsageKind distinguishes plain single-model requests from enhanced-mode
// (fan-out) requests. Daily counters are kept per kind.
type UsageKind string

const (
	UsageNormal   UsageKind = "normal"
	UsageEnhanced UsageKind = "enhanced"
)

// TierLimits holds the daily allowance for one tier.
type TierLimits struct {
	Daily    int
	Enhanced int
}
