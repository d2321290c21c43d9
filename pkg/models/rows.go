package models

// Reasons written to the failed sink's Code column for non-HTTP failures
const (
	ReasonUnreachable      = "Website unreachable."
	ReasonNoContact        = "No contact found."
	ReasonRobotsDisallowed = "Disallowed by robots.txt."
)

// ResultHeader is the header row of the result sink
var ResultHeader = []string{"Website", "Phone", "Email", "Facebook", "Twitter", "LinkedIn", "Instagram"}

// FailedHeader is the header row of the failed sink
var FailedHeader = []string{"Website", "Code"}

// ResultRow is one accepted seed URL with its comma-joined contact values
type ResultRow struct {
	Website   string `json:"website"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Facebook  string `json:"facebook"`
	Twitter   string `json:"twitter"`
	LinkedIn  string `json:"linkedin"`
	Instagram string `json:"instagram"`
}

// NewResultRow serializes a record into a sink row
func NewResultRow(website string, record *ContactRecord) ResultRow {
	return ResultRow{
		Website:   website,
		Phone:     record.Joined(Phone),
		Email:     record.Joined(Email),
		Facebook:  record.Joined(Facebook),
		Twitter:   record.Joined(Twitter),
		LinkedIn:  record.Joined(LinkedIn),
		Instagram: record.Joined(Instagram),
	}
}

// Strings returns the row's columns in header order
func (r ResultRow) Strings() []string {
	return []string{r.Website, r.Phone, r.Email, r.Facebook, r.Twitter, r.LinkedIn, r.Instagram}
}

// FailedRow is one rejected seed URL with its reason (HTTP status code or message)
type FailedRow struct {
	Website string `json:"website"`
	Code    string `json:"code"`
}

// Strings returns the row's columns in header order
func (r FailedRow) Strings() []string {
	return []string{r.Website, r.Code}
}
