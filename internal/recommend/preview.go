package recommend

import "strings"

// previewOf collapses whitespace and truncates to the same ≤200-char
// preview shape the hybrid search orchestrator produces.
func previewOf(content string) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	if len(collapsed) > 200 {
		return collapsed[:200]
	}
	return collapsed
}
