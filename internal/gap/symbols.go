package gap

import "strings"

// SymbolFilter excludes tickers that are not common stock gap candidates
// (warrants, rights, test symbols).
type SymbolFilter struct {
	maxLength       int
	blockedSuffixes []string
	blocked         map[string]struct{}
}

// NewSymbolFilter creates a filter. maxLength <= 0 disables the length rule.
func NewSymbolFilter(maxLength int, blockedSuffixes, blocked []string) *SymbolFilter {
	f := &SymbolFilter{
		maxLength:       maxLength,
		blockedSuffixes: make([]string, 0, len(blockedSuffixes)),
		blocked:         make(map[string]struct{}, len(blocked)),
	}
	for _, s := range blockedSuffixes {
		f.blockedSuffixes = append(f.blockedSuffixes, strings.ToUpper(s))
	}
	for _, s := range blocked {
		f.blocked[strings.ToUpper(s)] = struct{}{}
	}
	return f
}

// Allowed reports whether ticker passes every exclusion rule.
func (f *SymbolFilter) Allowed(ticker string) bool {
	ticker = strings.ToUpper(ticker)
	if ticker == "" {
		return false
	}
	if f.maxLength > 0 && len(ticker) > f.maxLength {
		return false
	}
	for _, suffix := range f.blockedSuffixes {
		if strings.HasSuffix(ticker, suffix) {
			return false
		}
	}
	_, blocked := f.blocked[ticker]
	return !blocked
}
