package domain_test

import (
	"strings"
	"testing"

	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmit_Placeholders(t *testing.T) {
	inputs := []string{
		"",
		"   \t\n",
		"Listening…",
		"Listening...",
		"Recording…",
		"recording",
		domain.ErrorTranscript,
		"ERROR",
	}
	for _, in := range inputs {
		for _, src := range []domain.Source{domain.SourceTyped, domain.SourceVoice} {
			_, err := domain.Admit(in, src)
			assert.ErrorIs(t, err, domain.ErrIgnoredInput, "input %q from %s", in, src)
		}
	}
}

func TestAdmit_TypedSentencesWithStatusWords(t *testing.T) {
	inputs := []string{
		"Listening to live jazz is a must, we're going to New Orleans",
		"recording studios in Nashville for 3 days",
		"Error-free trip to Rome please",
	}
	for _, in := range inputs {
		text, err := domain.Admit(in, domain.SourceTyped)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, in, text)
	}
}

func TestAdmit_VoiceStatusPrefix(t *testing.T) {
	for _, in := range []string{"Listening for speech", "Recording 00:03", "Error: upstream timeout"} {
		_, err := domain.Admit(in, domain.SourceVoice)
		assert.ErrorIs(t, err, domain.ErrIgnoredInput, "input %q", in)
	}

	text, err := domain.Admit("listening to jazz in New Orleans", domain.SourceVoice)
	require.NoError(t, err)
	assert.Equal(t, "listening to jazz in New Orleans", text)
}

func TestAdmit_VoiceNoise(t *testing.T) {
	_, err := domain.Admit("uh", domain.SourceVoice)
	assert.ErrorIs(t, err, domain.ErrIgnoredInput)

	text, err := domain.Admit("ok", domain.SourceTyped)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestAdmit_TrimsAndStripsControl(t *testing.T) {
	text, err := domain.Admit("  Kyoto\x1b[31m for 3 days\x00 ", domain.SourceTyped)
	require.NoError(t, err)
	assert.Equal(t, "Kyoto[31m for 3 days", text)
}

func TestSanitizeInput_Limits(t *testing.T) {
	_, err := domain.SanitizeInput(strings.Repeat("a", domain.MaxInputSize+1))
	assert.ErrorIs(t, err, domain.ErrInputTooLarge)

	_, err = domain.SanitizeInput("bad \xff utf8")
	assert.ErrorIs(t, err, domain.ErrInvalidUTF8)
}
