package matcher

import (
	"errors"
	"fmt"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultPatternCacheSize bounds the compiled-pattern cache when no size is given.
const DefaultPatternCacheSize = 4096

// ErrEmptyToken is returned when the token to search for is empty.
var ErrEmptyToken = errors.New("empty match token")

// RE2's \b only knows ASCII word characters, so "élan" would match inside
// "xélan". These edges consume the neighbouring rune; callers only test for a
// match and never use the match position.
const (
	wordStart = `(?:^|[^\pL\pN_])`
	wordEnd   = `(?:$|[^\pL\pN_])`
)

// MatchOptions controls how a token is turned into a pattern.
type MatchOptions struct {
	WholeWord     bool // token must not touch a Unicode letter, digit or underscore
	CaseSensitive bool
	Literal       bool // escape regex metacharacters in the token
}

var (
	// GeneMatch is used for gene symbols: boundary only, the symbol itself is not escaped.
	GeneMatch = MatchOptions{WholeWord: true, CaseSensitive: true}
	// DiseaseMatch is used for disease names searched in designation text.
	DiseaseMatch = MatchOptions{WholeWord: true, Literal: true}
)

type patternKey struct {
	token string
	opts  MatchOptions
}

// TextMatcher tests tokens against free text. Compiled patterns are memoized
// in a bounded LRU, so one matcher can be shared by concurrent callers.
type TextMatcher struct {
	cache *lru.Cache[patternKey, *regexp.Regexp]
}

func NewTextMatcher(cacheSize int) (*TextMatcher, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultPatternCacheSize
	}
	cache, err := lru.New[patternKey, *regexp.Regexp](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern cache: %w", err)
	}
	return &TextMatcher{cache: cache}, nil
}

// Pattern returns the compiled pattern for token under opts.
func (m *TextMatcher) Pattern(token string, opts MatchOptions) (*regexp.Regexp, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	key := patternKey{token: token, opts: opts}
	if re, ok := m.cache.Get(key); ok {
		return re, nil
	}

	expr := token
	if opts.Literal {
		expr = regexp.QuoteMeta(expr)
	}
	if opts.WholeWord {
		expr = wordStart + `(?:` + expr + `)` + wordEnd
	}
	if !opts.CaseSensitive {
		expr = `(?i)` + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern for %q: %w", token, err)
	}
	m.cache.Add(key, re)
	return re, nil
}

// Match reports whether token occurs in haystack. An empty haystack never matches.
func (m *TextMatcher) Match(token, haystack string, opts MatchOptions) (bool, error) {
	re, err := m.Pattern(token, opts)
	if err != nil {
		return false, err
	}
	if haystack == "" {
		return false, nil
	}
	return re.MatchString(haystack), nil
}

// CachedPatterns returns the number of compiled patterns currently held.
func (m *TextMatcher) CachedPatterns() int {
	return m.cache.Len()
}
