package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cortexr/agent/pkg/memory"
)

func toolItem(name string, success bool) memory.Item {
	return memory.Item{Type: memory.TypeToolOutput, ToolName: name, Success: &success}
}

func TestRecentSuccessfulTools(t *testing.T) {
	items := []memory.Item{
		{Type: memory.TypeRunMetadata, UserQuery: "q"},
		toolItem("add", true),
		toolItem("search", false),
		toolItem("factorial", true),
		toolItem("add", true), // duplicate, newest occurrence wins
		{Type: memory.TypeFinalAnswer, Text: "done"},
	}

	names := RecentSuccessfulTools(items, 5)
	assert.Equal(t, []string{"add", "factorial"}, names)
}

func TestRecentSuccessfulTools_Limit(t *testing.T) {
	var items []memory.Item
	for _, name := range []string{"a", "b", "c", "d"} {
		items = append(items, toolItem(name, true))
	}

	names := RecentSuccessfulTools(items, 2)
	assert.Equal(t, []string{"d", "c"}, names)
}

func TestRecentSuccessfulTools_Empty(t *testing.T) {
	assert.Empty(t, RecentSuccessfulTools(nil, 5))
	assert.Empty(t, RecentSuccessfulTools([]memory.Item{toolItem("x", false)}, 5))
}
