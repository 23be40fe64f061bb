package models

// InitResponse defines the structure for the /api/init endpoint response.
// Categories gives the client the section list up front so the jump-to-section
// menu renders before the first question loads.
type InitResponse struct {
	ApplicantID string         `json:"applicantId"`
	Guest       bool           `json:"guest"` // true when the id was generated server-side
	Categories  []CategoryInfo `json:"categories"`
}
