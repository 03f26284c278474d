package network

import "strings"

// JoinedPropertyParameters joins values into a multi-value API parameter.
func JoinedPropertyParameters(values []string) string {
	return strings.Join(values, "|")
}
