package agent

import "github.com/cortexr/agent/pkg/memory"

// DefaultFallbackToolLimit caps how many remembered tools seed a
// forced replan
const DefaultFallbackToolLimit = 5

// RecentSuccessfulTools scans session history newest-first and returns
// the names of distinct tools that recently succeeded, most recent
// first.
func RecentSuccessfulTools(items []memory.Item, limit int) []string {
	if limit <= 0 {
		limit = DefaultFallbackToolLimit
	}

	seen := make(map[string]bool)
	var names []string
	for i := len(items) - 1; i >= 0 && len(names) < limit; i-- {
		item := items[i]
		if item.Type != memory.TypeToolOutput || item.ToolName == "" {
			continue
		}
		if item.Success == nil || !*item.Success {
			continue
		}
		if seen[item.ToolName] {
			continue
		}
		seen[item.ToolName] = true
		names = append(names, item.ToolName)
	}
	return names
}
