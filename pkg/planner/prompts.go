package planner

import (
	"fmt"
	"strings"

	"github.com/cortexr/agent/pkg/dispatch"
)

const perceiveSystemPrompt = `You are the perception stage of a task-solving agent.
Read the user's task and the available tool servers, then reply with a single JSON object:
{
  "intent": "<one sentence describing what the user wants>",
  "entities": ["<key values, names or numbers in the task>"],
  "tool_hint": "<names of tools likely needed, or empty>",
  "selected_servers": ["<ids of servers likely relevant>"]
}
Reply with the JSON object only. No prose, no code fences.`

const planSystemPrompt = `You are the planning stage of a task-solving agent.
You solve tasks by emitting a JSON solve program that calls tools, or by answering directly.

A solve program looks like:
{"solve": [
  {"op": "call", "tool": "<tool name>", "args": {...}, "save": "<var>"},
  {"op": "parse", "from": "<var>", "save": "<var2>"},
  {"op": "match", "from": "<var>", "pattern": "<regex with one capture group>", "save": "<var3>"},
  {"op": "return", "value": "<text with {var} placeholders>"}
]}

Rules:
- "call" invokes one tool; "save" stores its text output.
- "parse" decodes a saved value as JSON so fields are reachable as {var.field}.
- "match" extracts the first capture group of a regular expression.
- Every program ends with exactly one "return".
- Use only the tools listed below. Stay within the tool call budget.

If the task needs no tools, reply on a single line:
FINAL_ANSWER: <the answer>

If a tool result must be studied before the task can be finished, reply:
FURTHER_PROCESSING_REQUIRED: <the material to study next>

Reply with the program or the marker line only. No prose.`

func buildPerceivePrompt(req PerceiveRequest) string {
	var b strings.Builder
	b.WriteString("Available tool servers:\n")
	if len(req.Servers) == 0 {
		b.WriteString("(none)\n")
	}
	for _, s := range req.Servers {
		fmt.Fprintf(&b, "- %s: %s\n", s.ID, s.Description)
	}
	b.WriteString("\nTask: ")
	b.WriteString(req.Query)
	return b.String()
}

func buildPlanPrompt(req PlanRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Tool call budget: %d calls.\n", req.MaxToolCalls)
	if req.PlanningMode == "exploratory" {
		b.WriteString("Mode: exploratory. Prefer gathering information with tools before answering.\n")
		if req.ExplorationMode == "parallel" {
			b.WriteString("Exploration: parallel. Batch independent lookups into one program.\n")
		} else {
			b.WriteString("Exploration: sequential. Take one tool result at a time and build on it.\n")
		}
	} else {
		b.WriteString("Mode: conservative. Use the fewest tool calls that solve the task.\n")
	}

	b.WriteString("\nAvailable tools:\n")
	b.WriteString(dispatch.Summarize(req.Tools))
	for _, tool := range req.Tools {
		if len(tool.InputSchema) > 0 {
			fmt.Fprintf(&b, "\nSchema for %s: %s", tool.Name, string(tool.InputSchema))
		}
	}

	b.WriteString("\n\nTask: ")
	b.WriteString(req.Query)
	return b.String()
}
