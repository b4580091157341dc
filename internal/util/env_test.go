package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{"unset uses default", "", true, true},
		{"true", "true", false, true},
		{"numeric one", "1", false, true},
		{"yes with spaces", "  yes  ", false, true},
		{"off", "off", true, false},
		{"FALSE uppercase", "FALSE", true, false},
		{"garbage uses default", "banana", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("TEST_BOOL_ENV", tt.value)
			}
			if got := ParseBoolEnv("TEST_BOOL_ENV", tt.defaultValue); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestParseIntEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue int
		want         int
	}{
		{"unset uses default", "", 10, 10},
		{"positive integer", "25", 10, 25},
		{"with spaces", " 7 ", 10, 7},
		{"zero uses default", "0", 10, 10},
		{"negative uses default", "-3", 10, 10},
		{"garbage uses default", "ten", 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("TEST_INT_ENV", tt.value)
			}
			if got := ParseIntEnv("TEST_INT_ENV", tt.defaultValue); got != tt.want {
				t.Errorf("ParseIntEnv(%q, %d) = %d, want %d", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}
