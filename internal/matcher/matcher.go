// Package matcher decides whether window titles are disallowed by a
// blacklist/whitelist rule set.
package matcher

import "github.com/bryanchriswhite/BrowserGuard/internal/patterns"

// Verdict is the outcome of matching titles against the rule set.
type Verdict int

const (
	// Clean means no blacklist pattern matched.
	Clean Verdict = iota
	// Blacklisted means a blacklist pattern matched and no whitelist pattern
	// matched the same title.
	Blacklisted
	// WhitelistOverride means every blacklisted title was also whitelisted.
	WhitelistOverride
)

func (v Verdict) String() string {
	switch v {
	case Clean:
		return "clean"
	case Blacklisted:
		return "blacklisted"
	case WhitelistOverride:
		return "whitelist_override"
	default:
		return "unknown"
	}
}

// MarshalText lets verdicts appear as strings in JSON and log fields.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Evaluate matches a single title.
func Evaluate(title string, blacklist, whitelist patterns.Set) Verdict {
	if !blacklist.MatchString(title) {
		return Clean
	}
	if whitelist.MatchString(title) {
		return WhitelistOverride
	}
	return Blacklisted
}

// Result is the aggregate outcome over a set of titles.
type Result struct {
	Verdict Verdict
	// Offending is the first title that was blacklisted, if any.
	Offending string
}

// EvaluateAll aggregates per-title verdicts. The whitelist is applied per
// title: a whitelist hit on one window never clears a blacklist hit on another.
func EvaluateAll(titles []string, blacklist, whitelist patterns.Set) Result {
	res := Result{Verdict: Clean}
	for _, title := range titles {
		switch Evaluate(title, blacklist, whitelist) {
		case Blacklisted:
			return Result{Verdict: Blacklisted, Offending: title}
		case WhitelistOverride:
			res.Verdict = WhitelistOverride
		}
	}
	return res
}
