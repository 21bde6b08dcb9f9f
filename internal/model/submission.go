package model

import "strings"

// Submission is one statement submitted from the item page.
// It only lives for the duration of a request.
type Submission struct {
	SubjectID   string        `json:"id"`
	Predicate   PredicateCode `json:"tipo"`
	TargetID    string        `json:"claim,omitempty"`
	ClaimHandle string        `json:"edit_claim,omitempty"`
}

// Normalize trims whitespace from every field.
func (s Submission) Normalize() Submission {
	return Submission{
		SubjectID:   strings.TrimSpace(s.SubjectID),
		Predicate:   PredicateCode(strings.TrimSpace(string(s.Predicate))),
		TargetID:    strings.ToUpper(strings.TrimSpace(s.TargetID)),
		ClaimHandle: strings.TrimSpace(s.ClaimHandle),
	}
}
