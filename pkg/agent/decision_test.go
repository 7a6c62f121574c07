package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		result    string
		wantFinal bool
		wantText  string
	}{
		{"final marker", "FINAL_ANSWER: 120", true, "120"},
		{"continue marker", "FURTHER_PROCESSING_REQUIRED: read chapter 2", false, "read chapter 2"},
		{"unmarked text is final", "the answer is 120", true, "the answer is 120"},
		{"whitespace around marker", "  FINAL_ANSWER:   done  ", true, "done"},
		{"marker decoded once", "FINAL_ANSWER: FINAL_ANSWER: nested", true, "FINAL_ANSWER: nested"},
		{"continue payload keeps inner marker", "FURTHER_PROCESSING_REQUIRED: FINAL_ANSWER: later", false, "FINAL_ANSWER: later"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.result)
			assert.Equal(t, tt.wantFinal, d.Final)
			assert.Equal(t, tt.wantText, d.Text)
		})
	}
}

func TestStripMarker(t *testing.T) {
	assert.Equal(t, "42", StripMarker("FINAL_ANSWER: 42"))
	assert.Equal(t, "plain", StripMarker("  plain "))
}
