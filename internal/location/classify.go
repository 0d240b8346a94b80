// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

// Classify maps the last known accuracy and the current rejection streak
// to a signal tier. A long streak overrides any accuracy value.
func Classify(accuracy *float64, rejections int) Strength {
	switch {
	case rejections > 10:
		return StrengthLost
	case rejections > 5:
		return StrengthPoor
	case accuracy == nil:
		return StrengthLost
	case *accuracy <= 5:
		return StrengthExcellent
	case *accuracy <= 15:
		return StrengthGood
	case *accuracy <= 50:
		return StrengthPoor
	default:
		return StrengthLost
	}
}
