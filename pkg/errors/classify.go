package errors

import (
	"net/http"
	"strings"

	"golang.org/x/text/cases"
)

// Class is the outcome of classifying a response.
type Class int

// Response classes.
const (
	// ClassNone is a successful (2xx) response.
	ClassNone Class = iota
	// ClassAuth is an expired or invalid session.
	ClassAuth
	// ClassCredit is an exhausted usage quota.
	ClassCredit
	// ClassGeneric is any other failure.
	ClassGeneric
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassAuth:
		return "auth"
	case ClassCredit:
		return "credit"
	case ClassGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// creditPhrases are matched against the case-folded body of failed responses.
var creditPhrases = []string{
	"insufficient credits",
	"credit limit exceeded",
	"no credits available",
	"402",
}

// Classify maps an HTTP status and an optional body to a response class.
// An empty body means no body. Status codes always win over body text:
// 401 is Auth and 402 is Credit whatever the body says, and the body is only
// sniffed for credit phrases when some other failure status is returned.
func Classify(status int, body string) Class {
	switch {
	case status == http.StatusUnauthorized:
		return ClassAuth
	case status == http.StatusPaymentRequired:
		return ClassCredit
	case status >= 200 && status < 300:
		return ClassNone
	}

	if body != "" && mentionsCredits(body) {
		return ClassCredit
	}
	return ClassGeneric
}

// mentionsCredits reports whether s carries one of the credit failure phrases.
func mentionsCredits(s string) bool {
	folded := cases.Fold().String(s)
	for _, phrase := range creditPhrases {
		if strings.Contains(folded, phrase) {
			return true
		}
	}
	return false
}
