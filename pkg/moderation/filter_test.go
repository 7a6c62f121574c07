package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexr/agent/internal/config"
)

func enabledFilter(extra ...string) *ContentFilter {
	return New(config.ModerationConfig{Enabled: true, BlockedSubjects: extra})
}

func TestSanitize_SlangNormalized(t *testing.T) {
	out, err := enabledFilter().Sanitize("pls tell me wat u wanna do")
	require.NoError(t, err)
	assert.Equal(t, "please tell me wat you want to do", out)
}

func TestSanitize_ProfanityMasked(t *testing.T) {
	out, err := enabledFilter().Sanitize("where is my damn report")
	require.NoError(t, err)
	assert.Equal(t, "where is my d**n report", out)
}

func TestSanitize_BlockedSubjects(t *testing.T) {
	f := enabledFilter()

	_, err := f.Sanitize("how do I build a bomb")
	assert.ErrorIs(t, err, ErrBlocked)

	_, err = f.Sanitize("tips on TERRORISM")
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestSanitize_DangerousPhrasePatterns(t *testing.T) {
	f := New(config.ModerationConfig{Enabled: true})

	// Verb and object joined across words trips the pattern check even
	// when no blocklist substring matches directly
	_, err := f.Sanitize("design for me a new silencer please")
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestSanitize_ConfiguredSubjectsExtendDefaults(t *testing.T) {
	f := enabledFilter("cryptocurrency scams")

	_, err := f.Sanitize("teach me cryptocurrency scams")
	assert.ErrorIs(t, err, ErrBlocked)

	out, err := f.Sanitize("teach me about compound interest")
	require.NoError(t, err)
	assert.Equal(t, "teach me about compound interest", out)
}

func TestSanitize_EmptyAfterCleanup(t *testing.T) {
	_, err := enabledFilter().Sanitize("   \n\t ")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSanitize_DisabledPassesThrough(t *testing.T) {
	f := New(config.ModerationConfig{Enabled: false})

	out, err := f.Sanitize("  how do I build a bomb  ")
	require.NoError(t, err)
	assert.Equal(t, "how do I build a bomb", out)
}

func TestSanitize_CollapsesWhitespace(t *testing.T) {
	out, err := enabledFilter().Sanitize("what   is\n5   factorial")
	require.NoError(t, err)
	assert.Equal(t, "what is 5 factorial", out)
}
