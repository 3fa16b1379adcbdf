package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/redactyl/livegrab/internal/types"
)

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool      `json:"tool"`
	Results    []sarifResult  `json:"results"`
	Properties map[string]any `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLoc        `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints"`
	Properties          map[string]any    `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhys      `json:"physicalLocation"`
	LogicalLocations []sarifLogical `json:"logicalLocations,omitempty"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt `json:"artifactLocation"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

type sarifLogical struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func sevToLevel(s types.Severity) string {
	switch s {
	case types.SevHigh:
		return "error"
	case types.SevMed:
		return "warning"
	default:
		return "note"
	}
}

// WriteSARIF writes r as SARIF 2.1.0. The capture fingerprint is the
// partial fingerprint, so code scanning dashboards dedupe across runs.
func WriteSARIF(w io.Writer, r *types.Report, toolVersion string) error {
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: "livegrab", Version: toolVersion}},
		Results: []sarifResult{},
		Properties: map[string]any{
			"totalUnique":      r.TotalUnique,
			"totalOccurrences": r.TotalOccurrences,
			"incomplete":       r.Incomplete,
		},
	}
	if r.RunID != "" {
		run.Properties["runId"] = r.RunID
	}
	rules := map[string]string{}
	for _, f := range r.Findings {
		rules[f.Detector] = string(f.Kind)
		loc := sarifLoc{PhysicalLocation: sarifPhys{ArtifactLocation: sarifArt{URI: string(f.Provenance.Kind) + "://" + f.Provenance.Location}}}
		if f.Provenance.Section != "" {
			loc.LogicalLocations = []sarifLogical{{Name: f.Provenance.Section, Kind: "member"}}
		}
		run.Results = append(run.Results, sarifResult{
			RuleID:              f.Detector,
			Level:               sevToLevel(f.Severity),
			Message:             sarifMessage{Text: fmt.Sprintf("%s detected in %s (%s)", f.Kind, f.Provenance, f.RedactedPreview)},
			Locations:           []sarifLoc{loc},
			PartialFingerprints: map[string]string{"livegrab/v1": f.ID},
			Properties: map[string]any{
				"riskScore":       f.RiskScore,
				"confidence":      f.Confidence,
				"occurrenceCount": f.OccurrenceCount,
				"known":           f.Known,
			},
		})
	}
	ids := make([]string, 0, len(rules))
	for id := range rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{ID: id, ShortDescription: sarifMessage{Text: rules[id] + " detector " + id}})
	}
	doc := sarif{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
