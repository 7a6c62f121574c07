package sandbox

import (
	"errors"
	"strings"
)

// ErrCallBudget is returned when a plan attempts more tool calls than
// its budget allows. The offending call is not executed.
var ErrCallBudget = errors.New("exceeded tool call budget")

// ErrNoEntryPoint is returned when a plan program defines no solve steps
var ErrNoEntryPoint = errors.New("no solve entry point in plan")

const sentinelPrefix = "[sandbox error: "

// sentinel converts an execution failure into the textual form fed back
// to the evaluation stage
func sentinel(err error) string {
	return sentinelPrefix + err.Error() + "]"
}

// IsSentinel reports whether a result text is a sandbox failure sentinel
func IsSentinel(text string) bool {
	return strings.HasPrefix(text, sentinelPrefix)
}
