package model

// swagger:model GeneratedQuestion
type GeneratedQuestion struct {
	Q          string `json:"q"`
	Intent     string `json:"intent"`
	Difficulty string `json:"difficulty"`
}

// swagger:model ResumeReview
type ResumeReview struct {
	Summary            string   `json:"summary"`
	Strengths          []string `json:"strengths"`
	AreasOfImprovement []string `json:"areas_of_improvement"`
	Feedback           []string `json:"feedback"`
}

// swagger:model ResumeMatch
type ResumeMatch struct {
	BestRole      string   `json:"best_role"`
	RecommendNext []string `json:"recommend_next"`
	OtherRoles    []string `json:"other_roles"`
}
