package jira

type DateTime struct {
	ISO8601  string `json:"iso8601"`
	Jira     string `json:"jira"`
	Friendly string `json:"friendly"`
}

type Status struct {
	Status         string   `json:"status"`
	StatusCategory string   `json:"statusCategory"`
	StatusDate     DateTime `json:"statusDate"`
}

// CreateRequest is the service desk payload for a new customer request.
type CreateRequest struct {
	ServiceDeskID      string                 `json:"serviceDeskId"`
	RequestTypeID      string                 `json:"requestTypeId"`
	RequestFieldValues map[string]interface{} `json:"requestFieldValues"`
}

type Issue struct {
	IssueID       string   `json:"issueId"`
	IssueKey      string   `json:"issueKey"`
	Summary       string   `json:"summary"`
	RequestTypeID string   `json:"requestTypeId"`
	ServiceDeskID string   `json:"serviceDeskId"`
	CreatedDate   DateTime `json:"createdDate"`
	CurrentStatus Status   `json:"currentStatus"`
	Links         struct {
		Web string `json:"web"`
	} `json:"_links"`
}
