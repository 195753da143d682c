package parse

import "strings"

// Phrases served by interstitial bot-challenge pages. Content sniffing is the
// only usable signal: the challenge renders with HTTP 200 and a normal DOM.
// Inherently fragile to upstream changes.
var challengePhrases = []string{
	"Just a moment...",
	"Verifying you are human.",
}

// IsChallengePage reports whether the rendered HTML is a bot-detection
// interstitial rather than real content.
func IsChallengePage(rawHTML string) bool {
	for _, phrase := range challengePhrases {
		if strings.Contains(rawHTML, phrase) {
			return true
		}
	}
	return false
}
