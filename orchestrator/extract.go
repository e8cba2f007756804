package orchestrator

import "strings"

// extractTransactionID scans an agent's free-form reply for something that
// looks like a transaction identifier: any whitespace-separated token whose
// lowercase form contains "tx" or "hedera_". Surrounding punctuation is
// stripped. When nothing matches, fallback is returned so downstream
// recording still carries a stable reference.
func extractTransactionID(reply, fallback string) string {
	for _, token := range strings.Fields(reply) {
		token = strings.Trim(token, ".,;:")
		lower := strings.ToLower(token)
		if strings.Contains(lower, "tx") || strings.Contains(lower, "hedera_") {
			return token
		}
	}
	return fallback
}
