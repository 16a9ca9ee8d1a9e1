// Package normalize splits a raw sender number into a country code and a
// local mobile number, the way original_source/checks/mobile_utils.py's
// normalize_mobile_number does: strip everything but digits, then try the
// longest configured country code as a prefix before falling back to the
// default.
package normalize

import (
	"regexp"
	"sort"
	"strings"
)

var nonDigit = regexp.MustCompile(`\D`)

// Result is the outcome of splitting a sender number.
type Result struct {
	CountryCode string
	LocalMobile string
}

// Number strips non-digit characters from raw and splits the result into a
// country code and local mobile number against allowedCodes, longest code
// first. If no configured code matches, it falls back to stripping
// defaultCode as a prefix when the cleaned number is long enough to plausibly
// carry one; otherwise the whole cleaned number is treated as local and
// defaultCode is reported as its country code (spec.md §4.2 step 5), so a
// plain domestic number with no explicit prefix still reads as domestic.
func Number(raw string, allowedCodes []string, defaultCode string) Result {
	clean := nonDigit.ReplaceAllString(raw, "")

	sorted := make([]string, len(allowedCodes))
	copy(sorted, allowedCodes)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	for _, code := range sorted {
		if code != "" && strings.HasPrefix(clean, code) {
			return Result{CountryCode: code, LocalMobile: strings.TrimPrefix(clean, code)}
		}
	}

	if defaultCode != "" && len(clean) > 10 && strings.HasPrefix(clean, defaultCode) {
		return Result{CountryCode: defaultCode, LocalMobile: strings.TrimPrefix(clean, defaultCode)}
	}

	return Result{CountryCode: defaultCode, LocalMobile: clean}
}

// FullNumber reassembles a country code and local mobile number into one
// digit string.
func FullNumber(countryCode, localMobile string) string {
	return countryCode + localMobile
}
