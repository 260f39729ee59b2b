package subtitles

import (
	"regexp"
	"strings"
	"unicode"
)

var adPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)opensubtitles`),
	regexp.MustCompile(`(?i)subtitles? by`),
	regexp.MustCompile(`(?i)synced? and corrected`),
	regexp.MustCompile(`(?i)advertise (your|yours?) product`),
	regexp.MustCompile(`(?i)http(s)?://`),
	regexp.MustCompile(`(?i)\bwww\.`),
	regexp.MustCompile(`(?i)\bsubscene\b`),
	regexp.MustCompile(`(?i)\byts\b`),
	regexp.MustCompile(`(?i)\byify\b`),
}

// CleanOptions selects which cues Clean removes.
type CleanOptions struct {
	// MaxRepeats drops every cue whose normalized text occurs at least this
	// many times. 0 disables the check.
	MaxRepeats int
	// BlockedPhrases are dropped wherever they occur as a whole cue.
	BlockedPhrases []string
	// DropAdvertisements removes release-group and site credits.
	DropAdvertisements bool
}

// CleanStats reports the effects of subtitle cleanup operations.
type CleanStats struct {
	RemovedRepeated int
	RemovedBlocked  int
	RemovedAds      int
	RepeatedPhrases []string
}

// Removed returns the total number of dropped cues.
func (s CleanStats) Removed() int {
	return s.RemovedRepeated + s.RemovedBlocked + s.RemovedAds
}

// Clean drops hallucinated repetitions, prompt echoes and advertisement cues
// and renumbers the remainder. Timings are untouched.
func Clean(d Document, opts CleanOptions) (Document, CleanStats) {
	var stats CleanStats

	blocked := make(map[string]struct{}, len(opts.BlockedPhrases))
	for _, phrase := range opts.BlockedPhrases {
		if key := NormalizePhrase(phrase); key != "" {
			blocked[key] = struct{}{}
		}
	}

	repeated := map[string]struct{}{}
	if opts.MaxRepeats > 0 {
		counts := make(map[string]int, len(d.Lines))
		for _, line := range d.Lines {
			counts[NormalizePhrase(line.Text)]++
		}
		for _, line := range d.Lines {
			key := NormalizePhrase(line.Text)
			if _, seen := repeated[key]; seen || counts[key] < opts.MaxRepeats {
				continue
			}
			repeated[key] = struct{}{}
			stats.RepeatedPhrases = append(stats.RepeatedPhrases, key)
		}
	}

	kept := make([]Line, 0, len(d.Lines))
	for _, line := range d.Lines {
		key := NormalizePhrase(line.Text)
		if _, ok := blocked[key]; ok {
			stats.RemovedBlocked++
			continue
		}
		if _, ok := repeated[key]; ok {
			stats.RemovedRepeated++
			continue
		}
		if opts.DropAdvertisements && isAdvertisement(line.Text) {
			stats.RemovedAds++
			continue
		}
		kept = append(kept, line)
	}
	return Renumber(kept), stats
}

// NormalizePhrase lowercases text, strips punctuation and collapses whitespace.
func NormalizePhrase(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

func isAdvertisement(text string) bool {
	payload := strings.TrimSpace(strings.ToLower(text))
	if payload == "" {
		return false
	}
	for _, pattern := range adPatterns {
		if pattern.MatchString(payload) {
			return true
		}
	}
	return false
}
