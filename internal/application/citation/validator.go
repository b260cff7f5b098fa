package citation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/clausehound/citex/internal/infrastructure/llm"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
	"github.com/clausehound/citex/internal/infrastructure/searchapi"
)

// Amendment recommendation values, strongest suppression last.
const (
	RecommendationKeep   = "keep"
	RecommendationModify = "modify"
	RecommendationRemove = "remove"
)

// Thresholds for validation decisions.
const (
	// removeScoreThreshold: a disclosed candidate scoring above this is
	// recommended for removal rather than modification.
	removeScoreThreshold = 0.8

	// validationTopMatches caps how many qualifying matches are shown to the
	// adjudication call.
	validationTopMatches = 3
)

// ValidationVerdict is the disclosure verdict for one candidate amendment
// against one prior-art reference.
type ValidationVerdict struct {
	ReferenceNumber string   `json:"referenceNumber,omitempty"`
	IsDisclosed     bool     `json:"isDisclosed"`
	Evidence        []string `json:"evidence,omitempty"`
	Score           float64  `json:"score"`
	Recommendation  string   `json:"recommendation"`
}

// MultiReferenceVerdict aggregates per-reference verdicts for one candidate.
type MultiReferenceVerdict struct {
	SuggestionText         string              `json:"suggestionText"`
	IsDisclosedInAny       bool                `json:"isDisclosedInAny"`
	IsDisclosedInAll       bool                `json:"isDisclosedInAll"`
	OverallValidationScore float64             `json:"overallValidationScore"`
	Recommendation         string              `json:"recommendation"`
	PerReference           []ValidationVerdict `json:"perReference,omitempty"`
}

// SuggestionValidator checks candidate claim amendments against prior art
// for disclosure. Its methods never return an error: any failure produces a
// conservative "disclosed, remove" verdict, because silently keeping an
// unvalidated suggestion is the worse outcome for prosecution.
type SuggestionValidator interface {
	ValidateAgainstReference(ctx context.Context, candidate CandidateAmendment, referenceNumber string) ValidationVerdict
	ValidateAgainstReferences(ctx context.Context, candidate CandidateAmendment, referenceNumbers []string) MultiReferenceVerdict
}

// ValidatorDeps holds the dependencies for the suggestion validator.
type ValidatorDeps struct {
	Search         SearchClient
	LLM            Completer
	Metrics        PipelineMetrics
	Logger         logging.Logger
	RelevanceFloor float64
}

type suggestionValidatorImpl struct {
	search  SearchClient
	llm     Completer
	metrics PipelineMetrics
	logger  logging.Logger
	floor   float64
}

// NewSuggestionValidator constructs the validator.
func NewSuggestionValidator(deps ValidatorDeps) SuggestionValidator {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	floor := deps.RelevanceFloor
	if floor <= 0 {
		floor = 0.7
	}
	return &suggestionValidatorImpl{
		search:  deps.Search,
		llm:     deps.LLM,
		metrics: metrics,
		logger:  logger.Named("validator"),
		floor:   floor,
	}
}

// ValidateAgainstReference runs a scoped extraction using the candidate's own
// text as the search input, then adjudicates the top qualifying matches with
// the LLM. No qualifying match means the candidate is provisionally novel.
func (v *suggestionValidatorImpl) ValidateAgainstReference(ctx context.Context, candidate CandidateAmendment, referenceNumber string) ValidationVerdict {
	verdict, err := v.validate(ctx, candidate, referenceNumber)
	if err != nil {
		v.logger.Warn("validation failed, applying conservative verdict",
			logging.String("reference_number", referenceNumber),
			logging.Err(err))
		verdict = conservativeVerdict(referenceNumber)
	}
	v.metrics.ValidationVerdict(verdict.IsDisclosed)
	return verdict
}

// ValidateAgainstReferences runs the single-reference procedure independently
// for each reference and aggregates the verdicts.
func (v *suggestionValidatorImpl) ValidateAgainstReferences(ctx context.Context, candidate CandidateAmendment, referenceNumbers []string) MultiReferenceVerdict {
	agg := MultiReferenceVerdict{
		SuggestionText:   candidate.SuggestionText,
		IsDisclosedInAll: len(referenceNumbers) > 0,
		Recommendation:   RecommendationKeep,
	}
	if len(referenceNumbers) == 0 {
		return agg
	}

	var sum float64
	for _, ref := range referenceNumbers {
		verdict := v.ValidateAgainstReference(ctx, candidate, ref)
		agg.PerReference = append(agg.PerReference, verdict)
		agg.IsDisclosedInAny = agg.IsDisclosedInAny || verdict.IsDisclosed
		agg.IsDisclosedInAll = agg.IsDisclosedInAll && verdict.IsDisclosed
		sum += verdict.Score
	}
	agg.OverallValidationScore = sum / float64(len(referenceNumbers))
	agg.Recommendation = deriveRecommendation(agg.IsDisclosedInAny, agg.OverallValidationScore)
	return agg
}

func (v *suggestionValidatorImpl) validate(ctx context.Context, candidate CandidateAmendment, referenceNumber string) (ValidationVerdict, error) {
	externalID, err := v.search.Submit(ctx, searchapi.SubmitRequest{
		SearchInputs:    []string{candidate.SuggestionText},
		ReferenceFilter: &referenceNumber,
		Threshold:       v.search.DefaultThreshold(),
	})
	if err != nil {
		return ValidationVerdict{}, err
	}

	res, err := v.search.PollUntilDone(ctx, externalID)
	if err != nil {
		return ValidationVerdict{}, err
	}
	if res.Outcome != searchapi.OutcomeCompleted {
		return ValidationVerdict{}, fmt.Errorf("scoped extraction ended %s: %s", res.Outcome, res.ErrorPayload)
	}

	top := topQualifyingMatches(res.Result, v.floor, validationTopMatches)
	if len(top) == 0 {
		// Nothing in the reference scores above the floor: provisionally novel.
		return ValidationVerdict{
			ReferenceNumber: referenceNumber,
			IsDisclosed:     false,
			Recommendation:  RecommendationKeep,
		}, nil
	}

	verdict, err := v.adjudicate(ctx, candidate, referenceNumber, top)
	if err != nil {
		return ValidationVerdict{}, err
	}
	return verdict, nil
}

// adjudicationResponse is the JSON shape the adjudication call must return.
type adjudicationResponse struct {
	IsDisclosed bool     `json:"isDisclosed"`
	Evidence    []string `json:"evidence"`
	Score       float64  `json:"score"`
}

func (v *suggestionValidatorImpl) adjudicate(ctx context.Context, candidate CandidateAmendment, referenceNumber string, matches []Match) (ValidationVerdict, error) {
	comp, err := v.llm.CompleteJSON(ctx, buildAdjudicationMessages(candidate, referenceNumber, matches))
	if err != nil {
		return ValidationVerdict{}, err
	}

	var resp adjudicationResponse
	if err := llm.DecodeJSON(comp.Content, &resp); err != nil {
		return ValidationVerdict{}, err
	}
	if resp.Score < 0 {
		resp.Score = 0
	}
	if resp.Score > 1 {
		resp.Score = 1
	}

	return ValidationVerdict{
		ReferenceNumber: referenceNumber,
		IsDisclosed:     resp.IsDisclosed,
		Evidence:        resp.Evidence,
		Score:           resp.Score,
		Recommendation:  deriveRecommendation(resp.IsDisclosed, resp.Score),
	}, nil
}

// deriveRecommendation maps a disclosure verdict and score onto a
// recommendation: strongly disclosed candidates are removed, weakly disclosed
// ones modified, undisclosed ones kept.
func deriveRecommendation(disclosed bool, score float64) string {
	switch {
	case disclosed && score > removeScoreThreshold:
		return RecommendationRemove
	case disclosed:
		return RecommendationModify
	default:
		return RecommendationKeep
	}
}

// conservativeVerdict is the failure fallback: treat the candidate as
// disclosed and recommend removal.
func conservativeVerdict(referenceNumber string) ValidationVerdict {
	return ValidationVerdict{
		ReferenceNumber: referenceNumber,
		IsDisclosed:     true,
		Score:           1,
		Recommendation:  RecommendationRemove,
	}
}

// topQualifyingMatches flattens the result payload and keeps the highest
// scoring matches above the relevance floor.
func topQualifyingMatches(raw json.RawMessage, floor float64, limit int) []Match {
	groups, ok := parseGroups(raw)
	if !ok {
		return nil
	}
	var all []Match
	for _, g := range groups {
		all = append(all, g.Matches...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })

	var top []Match
	for _, m := range all {
		if m.Score > floor {
			top = append(top, m)
		}
		if len(top) == limit {
			break
		}
	}
	return top
}

func buildAdjudicationMessages(candidate CandidateAmendment, referenceNumber string, matches []Match) []llm.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Candidate claim amendment:\n%s\n\n", candidate.SuggestionText)
	fmt.Fprintf(&b, "Prior-art reference: %s\n\nClosest passages:\n", referenceNumber)
	for i, m := range matches {
		fmt.Fprintf(&b, "%d. (score %.2f) %s\n", i+1, m.Score, m.Citation)
		if m.Paragraph != "" {
			fmt.Fprintf(&b, "   %s\n", m.Paragraph)
		}
	}
	b.WriteString("\nDoes the reference disclose the candidate amendment? " +
		`Respond with JSON: {"isDisclosed": bool, "evidence": [string], "score": number between 0 and 1}.`)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a patent examiner assessing whether a proposed claim amendment is disclosed by a prior-art reference. Be precise and cite only the provided passages as evidence."},
		{Role: llm.RoleUser, Content: b.String()},
	}
}
