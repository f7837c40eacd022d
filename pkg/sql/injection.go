package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a search keyword that looks like an
// injection attempt.
type InjectionCheckResult struct {
	Keyword     string
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// CheckKeywordForInjection runs libinjection over a single search keyword.
// Returns nil when the keyword is clean.
//
// Example:
//
//	CheckKeywordForInjection("customer")            // nil
//	CheckKeywordForInjection("'; DROP TABLE users--") // Fingerprint "s&1c" or similar
func CheckKeywordForInjection(keyword string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(keyword)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		Keyword:     keyword,
		Fingerprint: string(fingerprint),
	}
}

// CheckKeywords validates every keyword of a catalog search request and
// returns one result per suspicious keyword, in input order.
func CheckKeywords(keywords []string) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for _, kw := range keywords {
		if result := CheckKeywordForInjection(kw); result != nil {
			results = append(results, result)
		}
	}
	return results
}
