package models

import "time"

// VerificationStatus defines lifecycle states for alumni verification.
type VerificationStatus string

const (
	// VerificationNotSubmitted is the effective status of an applicant with no applications.
	VerificationNotSubmitted VerificationStatus = "not_submitted"
	// VerificationPending indicates the application is awaiting review.
	VerificationPending VerificationStatus = "pending"
	// VerificationApproved indicates the application was accepted.
	VerificationApproved VerificationStatus = "approved"
	// VerificationRejected indicates the application was denied or superseded.
	VerificationRejected VerificationStatus = "rejected"
)

// ParseVerificationStatus accepts the stored statuses in any casing.
func ParseVerificationStatus(raw string) (VerificationStatus, bool) {
	switch s := VerificationStatus(lower(raw)); s {
	case VerificationPending, VerificationApproved, VerificationRejected:
		return s, true
	default:
		return "", false
	}
}

func (s VerificationStatus) priority() int {
	switch s {
	case VerificationApproved:
		return 3
	case VerificationPending:
		return 2
	case VerificationRejected:
		return 1
	default:
		return 0
	}
}

// EffectiveVerificationStatus reduces an applicant's application statuses to
// one: approved over pending over rejected over not_submitted. The result
// does not depend on the order of statuses.
func EffectiveVerificationStatus(statuses []VerificationStatus) VerificationStatus {
	effective := VerificationNotSubmitted
	for _, s := range statuses {
		if s.priority() > effective.priority() {
			effective = s
		}
	}
	return effective
}

// AlumniVerificationApplication is one alumni's request to be verified.
type AlumniVerificationApplication struct {
	ID             uint               `gorm:"primaryKey" json:"id"`
	ApplicantID    uint               `gorm:"not null;index" json:"applicantId"`
	StudentID      string             `gorm:"size:64;not null" json:"studentId"`
	IDCardImage    string             `gorm:"size:512;not null" json:"idCardImage"`
	CurrentJobInfo string             `gorm:"type:text" json:"currentJobInfo"`
	Status         VerificationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ReviewNote     string             `gorm:"type:text" json:"reviewNote"`
	ReviewedBy     *uint              `json:"reviewedBy"`
	ReviewedAt     *time.Time         `json:"reviewedAt"`
	CreatedAt      time.Time          `gorm:"index" json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`

	Applicant      *User  `gorm:"-" json:"applicant,omitempty"`
	IDCardImageURL string `gorm:"-" json:"idCardImageUrl,omitempty"`
}

// TableName pins the table name used by migrations.
func (AlumniVerificationApplication) TableName() string {
	return "alumni_verification_applications"
}
