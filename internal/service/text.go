package service

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// foldText canonicalizes free text for keyword and pattern matching: NFC
// composition so accented keywords match regardless of input encoding, then
// Unicode case folding. A fresh Caser is built per call because Casers carry
// state and are not safe for concurrent use.
func foldText(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// joinClinicalText concatenates the free-text fields that clinical facts are
// mined from.
func joinClinicalText(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return foldText(strings.Join(kept, " "))
}
