package model

// WebsiteProfile is the structured brand/industry profile derived from a
// site's crawled content.
type WebsiteProfile struct {
	CompanyName          string   `json:"companyName"`
	Industry             string   `json:"industry"`
	Services             []string `json:"services"`
	TargetMarket         string   `json:"targetMarket"`
	Location             string   `json:"location"`
	UniqueSellingPoints  []string `json:"uniqueSellingPoints"`
	Keywords             []string `json:"keywords"`
	PotentialCompetitors []string `json:"potentialCompetitors"`
	TechnicalIssues      []string `json:"technicalIssues"`
	Language             string   `json:"language,omitempty"`

	// Fallback is set when the profile was built from defaults rather than
	// extracted from content.
	Fallback bool `json:"-"`
}
