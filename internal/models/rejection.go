package models

import "strings"

// RejectionReason is a member of the fixed catalog an operator picks from when
// rejecting an application.
type RejectionReason string

const (
	ReasonIncompleteDetails    RejectionReason = "Incomplete application details"
	ReasonInvalidAadhaar       RejectionReason = "Invalid Aadhaar document"
	ReasonInvalidInstitutionID RejectionReason = "Invalid institution ID proof"
	ReasonBonafideInvalid      RejectionReason = "Bonafide certificate missing or invalid"
	ReasonPhotoNotClear        RejectionReason = "Photo not clear"
	ReasonRouteNotServiceable  RejectionReason = "Route not serviceable"
	ReasonDuplicateApplication RejectionReason = "Duplicate application"
)

var rejectionCatalog = []RejectionReason{
	ReasonIncompleteDetails,
	ReasonInvalidAadhaar,
	ReasonInvalidInstitutionID,
	ReasonBonafideInvalid,
	ReasonPhotoNotClear,
	ReasonRouteNotServiceable,
	ReasonDuplicateApplication,
}

// RejectionReasons returns the catalog in display order.
func RejectionReasons() []RejectionReason {
	out := make([]RejectionReason, len(rejectionCatalog))
	copy(out, rejectionCatalog)
	return out
}

// ParseRejectionReason returns the catalog entry equal to raw after trimming.
func ParseRejectionReason(raw string) (RejectionReason, bool) {
	raw = strings.TrimSpace(raw)
	for _, r := range rejectionCatalog {
		if string(r) == raw {
			return r, true
		}
	}
	return "", false
}
