package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Plan item provenance, carried from the comparison UI selection.
const (
	PlanItemSourceTherapist = "therapist"
	PlanItemSourceAI        = "ai"
	PlanItemSourceBoth      = "both"
)

type PlanDiagnosis struct {
	Primary    string   `json:"primary"`
	Specifiers []string `json:"specifiers,omitempty"`
}

type PlanItem struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

type PlanGoal struct {
	Text     string `json:"text"`
	Timeline string `json:"timeline,omitempty"`
	Source   string `json:"source,omitempty"`
}

type PlanContent struct {
	Diagnosis     *PlanDiagnosis         `json:"diagnosis,omitempty"`
	Concerns      []PlanItem             `json:"concerns"`
	Themes        []string               `json:"themes"`
	Goals         []PlanGoal             `json:"goals"`
	Strengths     []PlanItem             `json:"strengths"`
	Interventions []AnalysisIntervention `json:"interventions"`
	Homework      []AnalysisHomework     `json:"homework"`
}

// ClientPlanView is the non-clinical paraphrase surfaced to the client portal.
type ClientPlanView struct {
	Summary       string   `json:"summary"`
	WorkingOn     []string `json:"working_on"`
	Strengths     []string `json:"strengths"`
	NextSteps     []string `json:"next_steps"`
	Encouragement string   `json:"encouragement"`
}

// NormalizePlanContent decodes a stored therapist content blob, lifting legacy
// shapes into the current struct. Older rows stored diagnosis as a bare
// string; it becomes {primary} with no specifiers.
func NormalizePlanContent(raw []byte) (*PlanContent, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty plan content")
	}
	var loose struct {
		Diagnosis     json.RawMessage        `json:"diagnosis"`
		Concerns      []PlanItem             `json:"concerns"`
		Themes        []string               `json:"themes"`
		Goals         []PlanGoal             `json:"goals"`
		Strengths     []PlanItem             `json:"strengths"`
		Interventions []AnalysisIntervention `json:"interventions"`
		Homework      []AnalysisHomework     `json:"homework"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil, fmt.Errorf("decode plan content: %w", err)
	}
	content := &PlanContent{
		Concerns:      loose.Concerns,
		Themes:        loose.Themes,
		Goals:         loose.Goals,
		Strengths:     loose.Strengths,
		Interventions: loose.Interventions,
		Homework:      loose.Homework,
	}
	if len(loose.Diagnosis) > 0 && string(loose.Diagnosis) != "null" {
		var structured PlanDiagnosis
		if err := json.Unmarshal(loose.Diagnosis, &structured); err == nil && structured.Primary != "" {
			content.Diagnosis = &structured
		} else {
			var legacy string
			if err := json.Unmarshal(loose.Diagnosis, &legacy); err != nil {
				return nil, fmt.Errorf("decode plan diagnosis: %w", err)
			}
			if strings.TrimSpace(legacy) != "" {
				content.Diagnosis = &PlanDiagnosis{Primary: strings.TrimSpace(legacy)}
			}
		}
	}
	return content, nil
}
