package models

// PlanStep is one step in an investigation plan.
type PlanStep struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Plan is the structured feasibility plan produced before the pipeline runs.
// CanProceed is false when the extracted parameters are insufficient; the
// missing pieces are listed as blocking questions.
type Plan struct {
	Goal              string     `json:"goal"`
	CanProceed        bool       `json:"can_proceed"`
	BlockingQuestions []string   `json:"blocking_questions"`
	Assumptions       []string   `json:"assumptions"`
	Steps             []PlanStep `json:"steps"`
	ExpectedArtifacts []string   `json:"expected_artifacts"`
	ReplanTriggers    []string   `json:"replan_triggers"`
	Warnings          []string   `json:"warnings"`
}
