package domain

// ApplicationStatus is the lifecycle state of a license application.
type ApplicationStatus string

const (
	StatusDraft            ApplicationStatus = "DRAFT"
	StatusSubmitted        ApplicationStatus = "SUBMITTED"
	StatusUnderReview      ApplicationStatus = "UNDER_REVIEW"
	StatusPaymentPending   ApplicationStatus = "PAYMENT_PENDING"
	StatusPaymentConfirmed ApplicationStatus = "PAYMENT_CONFIRMED"
	StatusApproved         ApplicationStatus = "APPROVED"
	StatusLicenseProduced  ApplicationStatus = "LICENSE_PRODUCED"
	StatusLicenseIssued    ApplicationStatus = "LICENSE_ISSUED"
	StatusRejected         ApplicationStatus = "REJECTED"
	StatusCancelled        ApplicationStatus = "CANCELLED"
)

// ActiveStatuses are the states that block a new application for the same
// (person, license type).
var ActiveStatuses = []ApplicationStatus{
	StatusDraft,
	StatusSubmitted,
	StatusUnderReview,
	StatusPaymentPending,
	StatusPaymentConfirmed,
	StatusApproved,
}

// Terminal reports whether no further transitions are permitted.
func (s ApplicationStatus) Terminal() bool {
	switch s {
	case StatusLicenseIssued, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// forwardTransitions is the happy-path state machine. REJECTED and
// CANCELLED are reachable from every non-terminal state and handled in
// CanTransition rather than listed per state.
var forwardTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusDraft:            {StatusSubmitted},
	StatusSubmitted:        {StatusUnderReview, StatusPaymentPending},
	StatusUnderReview:      {StatusPaymentPending},
	StatusPaymentPending:   {StatusPaymentConfirmed},
	StatusPaymentConfirmed: {StatusApproved},
	StatusApproved:         {StatusLicenseProduced},
	StatusLicenseProduced:  {StatusLicenseIssued},
}

// CanTransition reports whether moving from s to next is legal.
func (s ApplicationStatus) CanTransition(next ApplicationStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusRejected || next == StatusCancelled {
		return true
	}
	for _, allowed := range forwardTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
