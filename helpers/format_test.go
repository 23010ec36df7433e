package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "$0.00", FormatCurrency(0))
	assert.Equal(t, "$5.00", FormatCurrency(5))
	assert.Equal(t, "$1,234.50", FormatCurrency(1234.5))
	assert.Equal(t, "$1,234,567.50", FormatCurrency(1234567.5))
	assert.Equal(t, "-$250.75", FormatCurrency(-250.75))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "+12.3%", FormatPercent(12.34))
	assert.Equal(t, "-8.1%", FormatPercent(-8.06))
	assert.Equal(t, "0.0%", FormatPercent(0))
}

func TestFormatTimeAgo(t *testing.T) {
	now := time.Now()

	assert.Equal(t, "", FormatTimeAgo(time.Time{}))
	assert.Equal(t, "just now", FormatTimeAgo(now.Add(-30*time.Second)))
	assert.Equal(t, "5m ago", FormatTimeAgo(now.Add(-5*time.Minute)))
	assert.Equal(t, "3h ago", FormatTimeAgo(now.Add(-3*time.Hour)))
	assert.Equal(t, "2d ago", FormatTimeAgo(now.Add(-49*time.Hour)))

	old := now.Add(-30 * 24 * time.Hour)
	assert.Equal(t, old.Format("Jan 2, 2006"), FormatTimeAgo(old))
}
