package models

import (
	"strings"
	"time"
)

// DefaultTextColor is the display color written to a peripheral that has
// never been configured by an operator.
const DefaultTextColor = "#FFFFFF"

// Device is the persisted identity of a paired or onboarded peripheral.
// Address is the stable unique key; it is the only value used for
// discovery dedup.
type Device struct {
	Address       string    `json:"address"`
	Name          string    `json:"name"`
	ShouldConnect bool      `json:"should_connect"`
	TextColor     string    `json:"text_color"`
	BLEPassword   string    `json:"ble_password,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NormalizeAddress canonicalizes a peripheral address for map keys and
// dedup comparisons.
func NormalizeAddress(address string) string {
	return strings.ToUpper(strings.TrimSpace(address))
}

// ConfigField is one named configuration value pushed to a peripheral.
// Fields are pushed in slice order.
type ConfigField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Sample is one data reading eligible for push to connected peripherals.
type Sample struct {
	Timestamp  time.Time `json:"timestamp"`
	Value      float64   `json:"value"`
	Sensor     string    `json:"sensor,omitempty"`
	Raw        bool      `json:"raw,omitempty"`
	Calculated bool      `json:"calculated,omitempty"`
}

// ReadingQuery selects samples from a ReadingSource, newest first.
// A zero Since means no lower bound; a Limit of zero or less means no cap.
type ReadingQuery struct {
	Limit             int
	Since             time.Time
	Sensor            string
	ExcludeRaw        bool
	ExcludeCalculated bool
}
