package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeadlineTableDefaults(t *testing.T) {
	cfg := Load()
	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	cases := map[string]time.Duration{
		"20mins":        5 * time.Minute,
		"40mins":        10 * time.Minute,
		"1-2hours":      20 * time.Minute,
		"anytime_today": 30 * time.Minute,
	}
	for window, budget := range cases {
		assert.Equal(t, created.Add(budget), cfg.Orders.Deadline(window, created), window)
	}

	// Unknown windows fall back to the default budget.
	assert.Equal(t, created.Add(10*time.Minute), cfg.Orders.Deadline("next_week", created))
}

func TestDeadlineTableOverride(t *testing.T) {
	t.Setenv("DEADLINE_20MINS_MINUTES", "7")
	t.Setenv("DEADLINE_DEFAULT_MINUTES", "15")

	cfg := Load()
	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, created.Add(7*time.Minute), cfg.Orders.Deadline("20mins", created))
	assert.Equal(t, created.Add(15*time.Minute), cfg.Orders.Deadline("", created))
}
