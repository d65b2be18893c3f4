package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// wordChars is the character class for the suffix-wildcard form. RE2's \w
// and \b are ASCII-only, so word characters and word boundaries are handled
// with Unicode-aware classes here; keywords like "miljø" or "øko*" must
// match the same way ASCII ones do.
const wordChars = `[\p{L}\p{N}_]`

// Rule is a compiled keyword pattern. The zero value is not usable; rules
// are produced by Compile and safe for concurrent use once built.
type Rule struct {
	Keyword string
	Pattern *regexp.Regexp

	// boundedStart/boundedEnd require a word boundary on that side of a
	// pattern hit. Checked per match, since RE2 has no Unicode \b.
	boundedStart bool
	boundedEnd   bool
}

// Match is a single hit of a rule within one piece of text.
type Match struct {
	Keyword     string
	MatchedText string
	Position    int
}

// Compile turns a raw keyword string into a Rule. Three forms are
// recognized, checked in this order:
//
//	/expr/  – the enclosed regular expression, used verbatim
//	word*   – "word" followed by any run of word characters
//	word    – whole-word exact match
//
// All forms match case-insensitively.
func Compile(keyword string) (Rule, error) {
	kw := strings.TrimSpace(keyword)

	if strings.HasPrefix(kw, "/") && strings.HasSuffix(kw, "/") && len(kw) > 2 {
		pattern, err := regexp.Compile("(?i)" + kw[1:len(kw)-1])
		if err != nil {
			return Rule{}, fmt.Errorf("rule %q: %w", kw, err)
		}
		return Rule{Keyword: kw, Pattern: pattern}, nil
	}

	if strings.HasSuffix(kw, "*") {
		prefix := regexp.QuoteMeta(kw[:len(kw)-1])
		return Rule{
			Keyword:      kw,
			Pattern:      regexp.MustCompile(`(?i)` + prefix + wordChars + `*`),
			boundedStart: true,
		}, nil
	}

	escaped := regexp.QuoteMeta(kw)
	return Rule{
		Keyword:      kw,
		Pattern:      regexp.MustCompile(`(?i)` + escaped),
		boundedStart: true,
		boundedEnd:   true,
	}, nil
}

// CompileAll compiles a list of keyword strings, skipping blank entries.
func CompileAll(keywords []string) ([]Rule, error) {
	compiled := make([]Rule, 0, len(keywords))
	for _, k := range keywords {
		if strings.TrimSpace(k) == "" {
			continue
		}
		r, err := Compile(k)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, r)
	}
	return compiled, nil
}

// MatchString reports whether the rule hits text, boundaries included.
func (r Rule) MatchString(text string) bool {
	return len(r.findIndices(text)) > 0
}

// FindString returns the first boundary-respecting hit, or "".
func (r Rule) FindString(text string) string {
	locs := r.findIndices(text)
	if len(locs) == 0 {
		return ""
	}
	return text[locs[0][0]:locs[0][1]]
}

// findIndices returns the rule's match index pairs within text, dropping
// hits whose required side touches a word character.
func (r Rule) findIndices(text string) [][]int {
	locs := r.Pattern.FindAllStringIndex(text, -1)
	if !r.boundedStart && !r.boundedEnd {
		return locs
	}

	var kept [][]int
	for _, loc := range locs {
		if r.boundedStart && loc[0] > 0 {
			if c, _ := utf8.DecodeLastRuneInString(text[:loc[0]]); isWordChar(c) {
				continue
			}
		}
		if r.boundedEnd && loc[1] < len(text) {
			if c, _ := utf8.DecodeRuneInString(text[loc[1]:]); isWordChar(c) {
				continue
			}
		}
		kept = append(kept, loc)
	}
	return kept
}

func isWordChar(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

// FindAll returns every match of every rule in text, ordered by position.
func FindAll(text string, rules []Rule) []Match {
	var matches []Match
	for _, r := range rules {
		for _, loc := range r.findIndices(text) {
			matches = append(matches, Match{
				Keyword:     r.Keyword,
				MatchedText: text[loc[0]:loc[1]],
				Position:    loc[0],
			})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Position < matches[j].Position
	})
	return matches
}

// AnyMatch reports whether any rule hits text, stopping at the first hit.
func AnyMatch(text string, rules []Rule) bool {
	for _, r := range rules {
		if r.MatchString(text) {
			return true
		}
	}
	return false
}
