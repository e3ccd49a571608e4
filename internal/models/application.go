package models

import (
	"strings"
	"time"
)

// ApplicationStatus is the review state of a bus-pass application.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "Pending"
	StatusApproved ApplicationStatus = "Approved"
	StatusRejected ApplicationStatus = "Rejected"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Valid reports whether s is one of the known statuses.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ParseApplicationStatus accepts the status name case-insensitively.
func ParseApplicationStatus(raw string) (ApplicationStatus, bool) {
	for _, s := range []ApplicationStatus{StatusPending, StatusApproved, StatusRejected} {
		if strings.EqualFold(strings.TrimSpace(raw), string(s)) {
			return s, true
		}
	}
	return "", false
}

// InstitutionType discriminates the InstitutionProfile variants.
type InstitutionType string

const (
	InstitutionSchool  InstitutionType = "School"
	InstitutionCollege InstitutionType = "College"
)

// InstitutionProfile is either a School or a College. The interface is sealed.
type InstitutionProfile interface {
	Type() InstitutionType
	InstitutionName() string
	isInstitutionProfile()
}

// School is the profile of a school student.
type School struct {
	Name     string `json:"name"`
	Standard string `json:"standard"`
}

func (School) Type() InstitutionType { return InstitutionSchool }
func (s School) InstitutionName() string { return s.Name }
func (School) isInstitutionProfile() {}

// College is the profile of a college student.
type College struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	Year       string `json:"year"`
}

func (College) Type() InstitutionType { return InstitutionCollege }
func (c College) InstitutionName() string { return c.Name }
func (College) isInstitutionProfile() {}

// DocumentKind names one of the supporting documents attached to an application.
type DocumentKind string

const (
	DocumentPhoto            DocumentKind = "photo"
	DocumentIdentityProof    DocumentKind = "identity_proof"
	DocumentInstitutionProof DocumentKind = "institution_proof"
	DocumentBonafide         DocumentKind = "bonafide"
)

// DocumentKinds lists every document an application needs before approval.
func DocumentKinds() []DocumentKind {
	return []DocumentKind{DocumentPhoto, DocumentIdentityProof, DocumentInstitutionProof, DocumentBonafide}
}

// ParseDocumentKind maps a route parameter to a DocumentKind.
func ParseDocumentKind(raw string) (DocumentKind, bool) {
	k := DocumentKind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range DocumentKinds() {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// ApplicationRecord is one student's bus-pass application.
//
// The institution union is stored as flat nullable-by-convention columns; use
// Institution and SetInstitution rather than the column fields.
type ApplicationRecord struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	ApplicationNo    string     `gorm:"size:32;uniqueIndex;not null" json:"application_no"`
	StudentName      string     `gorm:"size:120;not null" json:"student_name"`
	GuardianName     string     `gorm:"size:120" json:"guardian_name"`
	DateOfBirth      *time.Time `json:"date_of_birth,omitempty"`
	Age              int        `json:"age"`
	Gender           string     `gorm:"size:16" json:"gender"`
	StudentContact   string     `gorm:"size:20" json:"student_contact"`
	ParentContact    string     `gorm:"size:20" json:"parent_contact"`
	PersonalEmail    string     `gorm:"size:255" json:"personal_email"`
	InstitutionEmail string     `gorm:"size:255" json:"institution_email"`

	InstitutionType    InstitutionType `gorm:"size:16;not null" json:"institution_type"`
	SchoolName         string          `gorm:"size:200" json:"-"`
	SchoolStandard     string          `gorm:"size:32" json:"-"`
	CollegeName        string          `gorm:"size:200" json:"-"`
	CollegeDepartment  string          `gorm:"size:120" json:"-"`
	CollegeYear        string          `gorm:"size:16" json:"-"`
	InstitutionAddress string          `gorm:"size:500" json:"institution_address"`

	RouteStart string `gorm:"size:120" json:"route_start"`
	RouteEnd   string `gorm:"size:120" json:"route_end"`

	PhotoRef            string `gorm:"size:500" json:"-"`
	IdentityProofRef    string `gorm:"size:500" json:"-"`
	InstitutionProofRef string `gorm:"size:500" json:"-"`
	BonafideRef         string `gorm:"size:500" json:"-"`

	Status               ApplicationStatus `gorm:"size:16;not null;default:Pending;index" json:"status"`
	RejectionReason      RejectionReason   `gorm:"size:120;not null;default:''" json:"rejection_reason"`
	ReviewedByOperatorID *uint             `json:"reviewed_by_operator_id,omitempty"`
	ReviewedAt           *time.Time        `json:"reviewed_at,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ApplicationRecord.
func (ApplicationRecord) TableName() string {
	return "applications"
}

// Institution returns the active institution variant, or nil if the record has none.
func (r *ApplicationRecord) Institution() InstitutionProfile {
	switch r.InstitutionType {
	case InstitutionSchool:
		return School{Name: r.SchoolName, Standard: r.SchoolStandard}
	case InstitutionCollege:
		return College{Name: r.CollegeName, Department: r.CollegeDepartment, Year: r.CollegeYear}
	}
	return nil
}

// SetInstitution stores p and clears the columns of the inactive variant.
func (r *ApplicationRecord) SetInstitution(p InstitutionProfile) {
	r.SchoolName, r.SchoolStandard = "", ""
	r.CollegeName, r.CollegeDepartment, r.CollegeYear = "", "", ""
	switch v := p.(type) {
	case School:
		r.InstitutionType = InstitutionSchool
		r.SchoolName, r.SchoolStandard = v.Name, v.Standard
	case College:
		r.InstitutionType = InstitutionCollege
		r.CollegeName, r.CollegeDepartment, r.CollegeYear = v.Name, v.Department, v.Year
	default:
		r.InstitutionType = ""
	}
}

// InstitutionName is the printable institution name, whichever variant is active.
func (r *ApplicationRecord) InstitutionName() string {
	if p := r.Institution(); p != nil {
		return p.InstitutionName()
	}
	return ""
}

// DocumentRef returns the storage key of the given document, empty when absent.
func (r *ApplicationRecord) DocumentRef(kind DocumentKind) string {
	switch kind {
	case DocumentPhoto:
		return r.PhotoRef
	case DocumentIdentityProof:
		return r.IdentityProofRef
	case DocumentInstitutionProof:
		return r.InstitutionProofRef
	case DocumentBonafide:
		return r.BonafideRef
	}
	return ""
}

// SetDocumentRef records the storage key of a document.
func (r *ApplicationRecord) SetDocumentRef(kind DocumentKind, ref string) {
	switch kind {
	case DocumentPhoto:
		r.PhotoRef = ref
	case DocumentIdentityProof:
		r.IdentityProofRef = ref
	case DocumentInstitutionProof:
		r.InstitutionProofRef = ref
	case DocumentBonafide:
		r.BonafideRef = ref
	}
}

// MissingDocuments lists the document kinds with no storage key.
func (r *ApplicationRecord) MissingDocuments() []string {
	var missing []string
	for _, kind := range DocumentKinds() {
		if strings.TrimSpace(r.DocumentRef(kind)) == "" {
			missing = append(missing, string(kind))
		}
	}
	return missing
}
