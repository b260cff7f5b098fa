package citation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clausehound/citex/internal/infrastructure/llm"
)

const analysisSystemPrompt = "You are an experienced patent examiner performing a prior-art deep analysis. " +
	"Compare each claim element against the cited passages, assess novelty and obviousness risk, " +
	"and respond only with the requested JSON object."

const analysisSchemaHint = `Respond with JSON:
{
  "overallAssessment": string,
  "rejectionRisk": "102" | "103" | "none",
  "noveltyCommentary": string,
  "elementComparisons": [
    {"element": string, "isDisclosed": bool, "analysis": string,
     "keyCitations": [{"citation": string, "location": string, "score": number}]}
  ],
  "proposedAmendments": [
    {"suggestionText": string, "reasoning": string, "priority": "high"|"medium"|"low",
     "addressedRejections": [string]}
  ]
}`

func buildAnalysisMessages(req *AnalysisRequest) []llm.Message {
	var b strings.Builder

	fmt.Fprintf(&b, "Claim under analysis:\n%s\n\n", req.ClaimText)

	b.WriteString("Claim elements, in order:\n")
	for i, el := range req.ClaimElements {
		fmt.Fprintf(&b, "%d. %s\n", i+1, el)
	}

	ref := req.Reference
	fmt.Fprintf(&b, "\nPrior-art reference: %s\n", ref.ReferenceNumber)
	if ref.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", ref.Title)
	}
	if ref.Applicant != "" {
		fmt.Fprintf(&b, "Applicant: %s\n", ref.Applicant)
	}
	if ref.Assignee != "" {
		fmt.Fprintf(&b, "Assignee: %s\n", ref.Assignee)
	}
	if ref.PublicationDate != "" {
		fmt.Fprintf(&b, "Published: %s\n", ref.PublicationDate)
	}

	perElement := req.PerElementCap
	if perElement <= 0 {
		perElement = 3
	}
	fmt.Fprintf(&b, "\nTop matches per claim element (at most %d each):\n%s\n", perElement, string(req.FilteredMatches))

	b.WriteString("\n" + analysisSchemaHint)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: analysisSystemPrompt},
		{Role: llm.RoleUser, Content: b.String()},
	}
}

// buildFinalizeMessages builds the phase-2 prompt: the original context plus
// the validation verdicts, asking the model to finalize its recommendations
// in light of the disclosure evidence.
func buildFinalizeMessages(req *AnalysisRequest, phase1 *DeepAnalysis, candidates []CandidateAmendment, verdicts []ValidationVerdict) []llm.Message {
	base := buildAnalysisMessages(req)

	var b strings.Builder
	b.WriteString("Your initial analysis proposed these amendments:\n")
	for i, cand := range candidates {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, cand.Priority, cand.SuggestionText)
	}

	verdictJSON, _ := json.MarshalIndent(verdicts, "", "  ")
	fmt.Fprintf(&b, "\nEach amendment was checked against the reference for disclosure:\n%s\n", verdictJSON)

	b.WriteString("\nFinalize the analysis: for each proposed amendment set \"recommendation\" to " +
		`"keep", "modify", or "remove" based on the disclosure evidence, and set "validated": true. ` +
		"Drop amendments the evidence shows are already disclosed, or rewrite them to avoid the disclosed subject matter.\n")
	if phase1.OverallAssessment != "" {
		fmt.Fprintf(&b, "\nInitial overall assessment for context:\n%s\n", phase1.OverallAssessment)
	}
	b.WriteString("\n" + analysisSchemaHint)

	return append(base, llm.Message{Role: llm.RoleUser, Content: b.String()})
}

// buildExaminerMessages asks for the analysis restated the way an office
// action would put it.
func buildExaminerMessages(req *AnalysisRequest, analysis *DeepAnalysis) []llm.Message {
	analysisJSON, _ := json.MarshalIndent(analysis, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "Claim:\n%s\n\nReference: %s\n\nCompleted deep analysis:\n%s\n",
		req.ClaimText, req.Reference.ReferenceNumber, analysisJSON)
	b.WriteString("\nRestate this analysis the way a USPTO office action would: " +
		"which rejections the examiner would raise and on what basis.\n" +
		`Respond with JSON: {"examinerSummary": string, "suggestedRejections": [string]}.`)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: analysisSystemPrompt},
		{Role: llm.RoleUser, Content: b.String()},
	}
}
