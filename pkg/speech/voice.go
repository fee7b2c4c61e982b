package speech

import (
	"regexp"
	"strings"

	"github.com/aretw0/tripvoice/pkg/ports"
)

var markdownEmphasis = regexp.MustCompile(`[*#_~]`)

// CleanMarkdown removes emphasis characters so they are not read aloud.
func CleanMarkdown(text string) string {
	return markdownEmphasis.ReplaceAllString(text, "")
}

// Voice ranks, highest first.
const (
	rankPlatform = iota
	rankDefault
	rankEnglish
	rankEnglishFemale
	rankVendorFemale
)

// SelectVoice picks the on-device voice for fallback speech.
//
// Order: a female voice from the preferred vendor, then any English female
// voice, then any English voice, then the voice flagged as default. Ties keep
// list order. When nothing matches, the zero Voice selects the platform
// default. ok is false only when the list is empty.
func SelectVoice(voices []ports.Voice, preferredVendor string) (v ports.Voice, ok bool) {
	if len(voices) == 0 {
		return ports.Voice{}, false
	}

	best, bestRank := ports.Voice{}, rankPlatform
	for _, candidate := range voices {
		if r := rankVoice(candidate, preferredVendor); r > bestRank {
			best, bestRank = candidate, r
		}
	}
	return best, true
}

func rankVoice(v ports.Voice, vendor string) int {
	female := isFemale(v)
	switch {
	case female && vendor != "" && strings.Contains(strings.ToLower(v.Name), strings.ToLower(vendor)):
		return rankVendorFemale
	case female && isEnglish(v):
		return rankEnglishFemale
	case isEnglish(v):
		return rankEnglish
	case v.Default:
		return rankDefault
	default:
		return rankPlatform
	}
}

func isFemale(v ports.Voice) bool {
	return strings.EqualFold(v.Gender, "female") || strings.Contains(strings.ToLower(v.Name), "female")
}

func isEnglish(v ports.Voice) bool {
	return strings.HasPrefix(strings.ToLower(v.Lang), "en")
}
