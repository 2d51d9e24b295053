package model

// Status is the lifecycle label assigned to an application message.
type Status string

const (
	StatusSubmitted  Status = "Submitted"
	StatusInterview  Status = "Interview"
	StatusAssessment Status = "Assessment"
	StatusOffer      Status = "Offer"
	StatusRejected   Status = "Rejected"
	StatusUnknown    Status = "Unknown"
)

// Statuses lists every valid status.
var Statuses = []Status{
	StatusSubmitted,
	StatusInterview,
	StatusAssessment,
	StatusOffer,
	StatusRejected,
	StatusUnknown,
}

// Valid reports whether s is one of the six defined labels.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Record is the normalized row persisted for one message.
type Record struct {
	MessageID     string
	ThreadID      string
	Date          string
	SenderName    string
	SenderEmail   string
	Subject       string
	CompanyGuess  string
	JobTitleGuess string
	Status        Status
	Preview       string
}
