// Package util provides utility functions shared across the survey flow engine.
package util

import (
	"math/rand"
	"strings"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified
// length. Uses math/rand; these IDs are identifiers, not secrets.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.Intn(16)])
	}

	return builder.String()
}

// GenerateParticipationID generates a unique participation ID with "pt_" prefix.
func GenerateParticipationID() string {
	return GenerateRandomID("pt_", 32)
}

// GenerateResponseID generates a unique response ID with "r_" prefix.
func GenerateResponseID() string {
	return GenerateRandomID("r_", 32)
}

// GenerateRuleID generates a unique logic rule ID with "rule_" prefix.
func GenerateRuleID() string {
	return GenerateRandomID("rule_", 32)
}

// GenerateJobID generates a unique background job ID with "job_" prefix.
func GenerateJobID() string {
	return GenerateRandomID("job_", 32)
}
