// Package strategy composes indicator predicates into entry/exit strategies.
package strategy

import "tradescan/internal/indicator"

// Rule is a predicate over (bar index, current position state). Rules are
// composed structurally from closures; there is no rule type hierarchy.
// Comparisons against NaN (indicator warm-up) are always false, so a rule
// can never fire before its indicators are defined.
type Rule func(index int, inPosition bool) bool

// And is true when every rule is true. Evaluation short-circuits.
func And(rules ...Rule) Rule {
	return func(index int, inPosition bool) bool {
		for _, r := range rules {
			if !r(index, inPosition) {
				return false
			}
		}
		return true
	}
}

// Or is true when any rule is true. Evaluation short-circuits.
func Or(rules ...Rule) Rule {
	return func(index int, inPosition bool) bool {
		for _, r := range rules {
			if r(index, inPosition) {
				return true
			}
		}
		return false
	}
}

// CrossedUp is true only at the exact index where a crosses above b:
// a[i-1] <= b[i-1] and a[i] > b[i]. Equality at i alone never counts.
func CrossedUp(a, b indicator.Indicator) Rule {
	return func(index int, _ bool) bool {
		return a.Value(index-1) <= b.Value(index-1) && a.Value(index) > b.Value(index)
	}
}

// CrossedDown is the mirror of CrossedUp: a[i-1] >= b[i-1] and a[i] < b[i].
func CrossedDown(a, b indicator.Indicator) Rule {
	return func(index int, _ bool) bool {
		return a.Value(index-1) >= b.Value(index-1) && a.Value(index) < b.Value(index)
	}
}

// Over is true when a exceeds a fixed threshold.
func Over(a indicator.Indicator, threshold float64) Rule {
	return func(index int, _ bool) bool {
		return a.Value(index) > threshold
	}
}

// Under is true when a is below a fixed threshold.
func Under(a indicator.Indicator, threshold float64) Rule {
	return func(index int, _ bool) bool {
		return a.Value(index) < threshold
	}
}

// OverIndicator is true when a exceeds b at the same index.
func OverIndicator(a, b indicator.Indicator) Rule {
	return func(index int, _ bool) bool {
		return a.Value(index) > b.Value(index)
	}
}

// UnderIndicator is true when a is below b at the same index.
func UnderIndicator(a, b indicator.Indicator) Rule {
	return func(index int, _ bool) bool {
		return a.Value(index) < b.Value(index)
	}
}
