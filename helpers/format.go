// Package helpers provides pure display formatting utilities.
package helpers

import (
	"fmt"
	"time"
)

// FormatTimeAgo renders a timestamp as a relative age ("just now", "5m ago").
// Timestamps older than a week fall back to the date.
func FormatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	elapsed := time.Since(t)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	case elapsed < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(elapsed.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}

// FormatCurrency formats a dollar amount with thousand separators,
// e.g. 1234567.5 -> "$1,234,567.50".
func FormatCurrency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	whole := int64(amount)
	cents := int64((amount-float64(whole))*100 + 0.5)
	if cents >= 100 {
		whole++
		cents -= 100
	}

	str := fmt.Sprintf("%d", whole)
	length := len(str)

	var result string
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result += ","
		}
		result += string(digit)
	}

	if negative {
		return fmt.Sprintf("-$%s.%02d", result, cents)
	}
	return fmt.Sprintf("$%s.%02d", result, cents)
}

// FormatPercent formats a percentage with one decimal and an explicit sign
// for gains, e.g. 12.34 -> "+12.3%".
func FormatPercent(value float64) string {
	if value > 0 {
		return fmt.Sprintf("+%.1f%%", value)
	}
	return fmt.Sprintf("%.1f%%", value)
}
