package services

// wildcardMatch matches s against a pattern where '*' matches any run of
// characters (including path separators, which path.Match would stop at)
// and '?' matches a single character. Trusted-builder identities are URIs,
// so patterns must be able to cross '/'.
func wildcardMatch(pattern, s string) bool {
	// Iterative two-pointer matching with backtracking over the last '*'.
	pi, si := 0, 0
	star, mark := -1, 0
	for si < len(s) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == s[si]):
			pi++
			si++
		case pi < len(pattern) && pattern[pi] == '*':
			star = pi
			mark = si
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}

// matchAny reports whether s matches at least one pattern.
func matchAny(patterns []string, s string) bool {
	for _, p := range patterns {
		if wildcardMatch(p, s) {
			return true
		}
	}
	return false
}
