package models

import "time"

type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationReviewing ApplicationStatus = "reviewing"
	ApplicationInterview ApplicationStatus = "interview"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
)

// ApplicationStatuses returns the status labels in dropdown order.
func ApplicationStatuses() []ApplicationStatus {
	return []ApplicationStatus{
		ApplicationPending,
		ApplicationReviewing,
		ApplicationInterview,
		ApplicationAccepted,
		ApplicationRejected,
	}
}

func (s ApplicationStatus) Valid() bool {
	for _, known := range ApplicationStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends the review.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationAccepted || s == ApplicationRejected
}

type Job struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Company      string    `json:"company"`
	Location     string    `json:"location,omitempty"`
	Type         string    `json:"type,omitempty"`
	Description  string    `json:"description,omitempty"`
	Requirements []string  `json:"requirements,omitempty"`
	Salary       string    `json:"salary,omitempty"`
	PostedBy     string    `json:"posted_by,omitempty"`
	Status       string    `json:"status,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Application struct {
	ID          string            `json:"id"`
	Job         Job               `json:"job"`
	Applicant   User              `json:"applicant"`
	Status      ApplicationStatus `json:"status"`
	CoverLetter string            `json:"cover_letter,omitempty"`
	ResumeURL   string            `json:"resume_url,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type JobFilter struct {
	Search   string
	Location string
	Type     string
	Page     Page
}

type ApplicationFilter struct {
	Status ApplicationStatus
	JobID  string
	Page   Page
}

type Stats struct {
	TotalJobs         int                       `json:"total_jobs"`
	ActiveJobs        int                       `json:"active_jobs"`
	TotalApplications int                       `json:"total_applications"`
	TotalUsers        int                       `json:"total_users"`
	ByStatus          map[ApplicationStatus]int `json:"by_status"`
}

// Page selects one page of a listing. Number starts at 1.
type Page struct {
	Number int
	Limit  int
}

func (p Page) Normalize(defaultLimit int) Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	return p
}
