package cron

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCronJobEnabled(t *testing.T) {
	seeded := `{"notifications":"off","payment":"off","uptime_panel":"off"}`

	tests := []struct {
		name    string
		raw     string
		job     string
		enabled bool
	}{
		{"seeded default disables notifications", seeded, "notifications", false},
		{"seeded default disables payment", seeded, "payment", false},
		{"json on flag", `{"notifications":"on"}`, "notifications", true},
		{"json off flag", `{"notifications":"off","payment":"on"}`, "notifications", false},
		{"other job unaffected", `{"notifications":"off","payment":"on"}`, "payment", true},
		{"missing key defaults on", `{"payment":"off"}`, "notifications", true},
		{"bare off disables all", "off", "payment", false},
		{"empty defaults on", "", "notifications", true},
		{"garbage defaults on", "not json", "notifications", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.enabled, cronJobEnabled(tt.raw, tt.job))
		})
	}
}
