package textproc

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Options controls the optional transforms in the post-processing
// chain. The artifact filter and whitespace trim always run.
type Options struct {
	Format       bool
	Replacements map[string]string
}

// Known noise emitted by whisper-style inference backends: bracketed
// or parenthesized sound tags and special control tokens.
var (
	soundTagPattern     = regexp.MustCompile(`(?i)[\[(](?:blank[_ ]audio|inaudible|music|applause|laughter|silence|noise)[\])]`)
	controlTokenPattern = regexp.MustCompile(`<\|[^|]*\|>`)
	speakerMarkPattern  = regexp.MustCompile(`(?m)^\s*>>\s*`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// Apply runs the full chain in fixed order: artifact filter, trim,
// optional formatter, then word replacements. Replacements run last so
// rules match the final surface text, not raw backend artifacts.
func Apply(text string, opts Options) string {
	out := FilterArtifacts(text)
	out = strings.TrimSpace(out)
	if opts.Format {
		out = FormatSentences(out)
	}
	return ApplyReplacements(out, opts.Replacements)
}

// FilterArtifacts strips noise tokens and markup from backend output.
func FilterArtifacts(text string) string {
	out := soundTagPattern.ReplaceAllString(text, "")
	out = controlTokenPattern.ReplaceAllString(out, "")
	out = speakerMarkPattern.ReplaceAllString(out, "")
	return multiSpacePattern.ReplaceAllString(out, " ")
}

// FormatSentences capitalizes sentence starts and guarantees terminal
// punctuation on non-empty text.
func FormatSentences(text string) string {
	if text == "" {
		return text
	}

	runes := []rune(text)
	capitalize := true
	for i, r := range runes {
		if capitalize && unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			capitalize = false
			continue
		}
		if r == '.' || r == '!' || r == '?' {
			capitalize = true
		}
	}

	out := string(runes)
	last := runes[len(runes)-1]
	if last != '.' && last != '!' && last != '?' {
		out += "."
	}
	return out
}

// ApplyReplacements rewrites whole-word matches using the given rules.
// Rules are applied longest-first so overlapping keys stay stable.
func ApplyReplacements(text string, rules map[string]string) string {
	if len(rules) == 0 {
		return text
	}

	keys := make([]string, 0, len(rules))
	for k := range rules {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	out := text
	for _, k := range keys {
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(k) + `\b`)
		out = pattern.ReplaceAllString(out, rules[k])
	}
	return out
}
