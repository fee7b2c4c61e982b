package domain

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxInputSize bounds a single utterance (bytes).
var MaxInputSize = 4096

// minVoiceRunes drops transcription noise such as "uh" or ".".
const minVoiceRunes = 3

// statusWords are the status strings a capture front-end shows in place of a transcript.
var statusWords = []string{"Listening", "Recording", "Error"}

// IsPlaceholder reports whether text is exactly a status marker, such as
// "Listening..." or the capture error transcript. Sentences that merely start
// with one of these words are content.
func IsPlaceholder(text string) bool {
	t := strings.TrimSpace(text)
	if t == ErrorTranscript {
		return true
	}
	t = strings.TrimRight(strings.TrimSuffix(t, "…"), ".")
	for _, w := range statusWords {
		if strings.EqualFold(t, w) {
			return true
		}
	}
	return false
}

// isVoiceStatus reports whether a transcript starts with a status word.
func isVoiceStatus(text string) bool {
	for _, w := range statusWords {
		if strings.HasPrefix(text, w) {
			return true
		}
	}
	return false
}

// Admit validates raw input and returns the text to submit.
// Blank input and exact status markers yield ErrIgnoredInput. Voice transcripts
// are also dropped when too short or led by a status word.
func Admit(text string, source Source) (string, error) {
	clean, err := SanitizeInput(text)
	if err != nil {
		return "", err
	}
	clean = strings.TrimSpace(clean)
	if clean == "" || IsPlaceholder(clean) {
		return "", ErrIgnoredInput
	}
	if source == SourceVoice && (utf8.RuneCountInString(clean) < minVoiceRunes || isVoiceStatus(clean)) {
		return "", ErrIgnoredInput
	}
	return clean, nil
}

// SanitizeInput enforces the size limit, validates UTF-8 and strips control
// characters other than newline, tab and carriage return.
func SanitizeInput(input string) (string, error) {
	if len(input) > MaxInputSize {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), MaxInputSize)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}
