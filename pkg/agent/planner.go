package agent

import (
	"fmt"

	"github.com/logsleuth/sleuth/pkg/models"
)

// Blocking questions appended when the planning gate fails.
const (
	questionMissingDate = "Which calendar date (or date range) did the disputed activity happen on?"
	questionMissingKey  = "Which identifier should the logs be searched for (transaction ID, account, service keyword)?"
)

// BuildPlan produces the feasibility plan for a request. The gate is
// deterministic: a missing time frame or empty query keys blocks the
// pipeline and surfaces as blocking questions.
func BuildPlan(params *models.SearchParameters, project models.ProjectDescriptor, env, userPrompt string) *models.Plan {
	plan := &models.Plan{
		Goal:       fmt.Sprintf("Investigate dispute on %s/%s: %s", project.Code, env, truncatePrompt(userPrompt)),
		CanProceed: params.CanProceed(),
	}

	if params.TimeFrame == "" {
		plan.BlockingQuestions = append(plan.BlockingQuestions, questionMissingDate)
	}
	if len(params.QueryKeys) == 0 {
		plan.BlockingQuestions = append(plan.BlockingQuestions, questionMissingKey)
	}

	if project.LogSourceKind == models.LogSourceRemote && params.TimeFrame == "" {
		plan.Warnings = append(plan.Warnings,
			"Remote log acquisition requires a time frame; the fetch step will fail without one")
	}

	if params.Domain != "" {
		plan.Assumptions = append(plan.Assumptions,
			fmt.Sprintf("Dispute concerns the %s domain", params.Domain))
	}
	if params.TimeFrame != "" {
		plan.Assumptions = append(plan.Assumptions,
			fmt.Sprintf("Activity occurred on %s (UTC day window)", params.TimeFrame))
	}

	plan.Steps = planSteps(project)
	plan.ExpectedArtifacts = []string{
		"Per-trace forensic report files",
		"Master summary report",
		"Relevance classification per trace",
	}
	plan.ReplanTriggers = []string{
		"No log sources matched the query keys",
		"No trace identifiers found in acquired logs",
		"All traces classified not_relevant or ignored",
	}
	return plan
}

func planSteps(project models.ProjectDescriptor) []models.PlanStep {
	acquire := models.PlanStep{
		Name:        "search_files",
		Description: "Scan the environment's log root for files matching the query keys",
	}
	if project.LogSourceKind == models.LogSourceRemote {
		acquire = models.PlanStep{
			Name:        "fetch_logs",
			Description: "Query the remote log store over the time window with the query keys",
		}
	}
	return []models.PlanStep{
		{Name: "extract_parameters", Description: "Extract time frame, domain, and query keys from the prompt"},
		acquire,
		{Name: "extract_trace_ids", Description: "Locate trace identifiers in the acquired logs"},
		{Name: "compile_bundles", Description: "Group entries per trace and build chronological timelines"},
		{Name: "analyze_traces", Description: "Produce a forensic analysis and report per trace"},
		{Name: "score_relevance", Description: "Classify each trace's relevance to the dispute"},
	}
}

func truncatePrompt(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
