package main

import (
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"ducklint/internal/inspections"
	"ducklint/internal/version"
)

// SARIF 2.1.0 schema types
// See: https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-v2.1.0.html

// SARIFReport is the top-level SARIF document.
type SARIFReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []SARIFRun `json:"runs"`
}

// SARIFRun represents a single analysis run.
type SARIFRun struct {
	Tool        SARIFTool         `json:"tool"`
	Results     []SARIFResult     `json:"results"`
	Invocations []SARIFInvocation `json:"invocations,omitempty"`
}

// SARIFTool describes the analysis tool.
type SARIFTool struct {
	Driver SARIFDriver `json:"driver"`
}

// SARIFDriver describes the primary analysis component.
type SARIFDriver struct {
	Name            string      `json:"name"`
	Version         string      `json:"version,omitempty"`
	Rules           []SARIFRule `json:"rules,omitempty"`
	SemanticVersion string      `json:"semanticVersion,omitempty"`
}

// SARIFRule describes an inspection.
type SARIFRule struct {
	ID                   string                  `json:"id"`
	Name                 string                  `json:"name,omitempty"`
	ShortDescription     *SARIFMessage           `json:"shortDescription,omitempty"`
	DefaultConfiguration *SARIFRuleConfiguration `json:"defaultConfiguration,omitempty"`
}

// SARIFRuleConfiguration describes the default configuration for a rule.
type SARIFRuleConfiguration struct {
	Level string `json:"level,omitempty"` // error, warning, note, none
}

// SARIFResult represents a single inspection result.
type SARIFResult struct {
	RuleID       string                 `json:"ruleId"`
	RuleIndex    int                    `json:"ruleIndex"`
	Level        string                 `json:"level,omitempty"`
	Message      SARIFMessage           `json:"message"`
	Locations    []SARIFLocation        `json:"locations,omitempty"`
	Fingerprints map[string]string      `json:"fingerprints,omitempty"`
	Properties   map[string]interface{} `json:"properties,omitempty"`
}

// SARIFMessage contains text in various formats.
type SARIFMessage struct {
	Text string `json:"text,omitempty"`
}

// SARIFLocation describes where a result was found.
type SARIFLocation struct {
	PhysicalLocation *SARIFPhysicalLocation `json:"physicalLocation,omitempty"`
	LogicalLocations []SARIFLogicalLocation `json:"logicalLocations,omitempty"`
}

// SARIFPhysicalLocation identifies a file and region.
type SARIFPhysicalLocation struct {
	ArtifactLocation *SARIFArtifactLocation `json:"artifactLocation,omitempty"`
	Region           *SARIFRegion           `json:"region,omitempty"`
}

// SARIFLogicalLocation names the module or member a result belongs to.
type SARIFLogicalLocation struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
	Kind               string `json:"kind,omitempty"`
}

// SARIFArtifactLocation identifies a file.
type SARIFArtifactLocation struct {
	URI       string `json:"uri,omitempty"`
	URIBaseID string `json:"uriBaseId,omitempty"`
}

// SARIFRegion identifies a region within a file.
type SARIFRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
}

// SARIFInvocation describes a single invocation of the tool.
type SARIFInvocation struct {
	ExecutionSuccessful bool   `json:"executionSuccessful"`
	Machine             string `json:"machine,omitempty"`
}

// formatSARIF converts an inspect response to SARIF. Results without a
// module file keep only their logical location.
func formatSARIF(resp interface{}) (string, error) {
	inspect, ok := resp.(*InspectResponseCLI)
	if !ok {
		return "", fmt.Errorf("sarif output is only available for inspect")
	}

	ruleIndex := make(map[string]int)
	var names []string
	severities := make(map[string]inspections.Severity)
	for _, r := range inspect.Results {
		if _, seen := severities[r.Inspection]; !seen {
			names = append(names, r.Inspection)
		}
		severities[r.Inspection] = r.Severity
	}
	sort.Strings(names)
	rules := make([]SARIFRule, len(names))
	for i, name := range names {
		ruleIndex[name] = i
		rules[i] = SARIFRule{
			ID:                   ruleID(name),
			Name:                 name,
			ShortDescription:     &SARIFMessage{Text: name},
			DefaultConfiguration: &SARIFRuleConfiguration{Level: severityToSARIFLevel(severities[name])},
		}
	}

	results := make([]SARIFResult, 0, len(inspect.Results))
	for _, r := range inspect.Results {
		logical := SARIFLogicalLocation{FullyQualifiedName: inspect.ProjectID + "." + r.Module, Kind: "module"}
		if r.Member != "" {
			logical = SARIFLogicalLocation{FullyQualifiedName: logical.FullyQualifiedName + "." + r.Member, Kind: "member"}
		}
		location := SARIFLocation{LogicalLocations: []SARIFLogicalLocation{logical}}
		if r.File != "" {
			location.PhysicalLocation = &SARIFPhysicalLocation{
				ArtifactLocation: &SARIFArtifactLocation{URI: r.File, URIBaseID: "%SRCROOT%"},
				Region:           &SARIFRegion{StartLine: r.FileLine, StartColumn: r.Column},
			}
		}
		results = append(results, SARIFResult{
			RuleID:       ruleID(r.Inspection),
			RuleIndex:    ruleIndex[r.Inspection],
			Level:        severityToSARIFLevel(r.Severity),
			Message:      SARIFMessage{Text: r.Description},
			Locations:    []SARIFLocation{location},
			Fingerprints: map[string]string{"ducklint/v1": fingerprint(r)},
			Properties:   r.Properties,
		})
	}

	report := SARIFReport{
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs: []SARIFRun{
			{
				Tool: SARIFTool{
					Driver: SARIFDriver{
						Name:            "ducklint",
						Version:         version.Version,
						SemanticVersion: version.Version,
						Rules:           rules,
					},
				},
				Results: results,
				Invocations: []SARIFInvocation{
					{
						ExecutionSuccessful: inspect.Failures == 0,
						Machine:             runtime.GOOS + "/" + runtime.GOARCH,
					},
				},
			},
		},
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal SARIF: %w", err)
	}
	return string(data), nil
}

func ruleID(inspection string) string {
	return "ducklint/" + inspection
}

func severityToSARIFLevel(s inspections.Severity) string {
	switch s {
	case inspections.SeverityError:
		return "error"
	case inspections.SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}

// fingerprint identifies a result across runs; it ignores the line so that
// edits above the result do not change it.
func fingerprint(r ResultCLI) string {
	key := r.Inspection + "\x00" + r.Module + "\x00" + r.Member + "\x00" + r.Target + "\x00" + r.Description
	return strconv.FormatUint(xxhash.Sum64String(key), 16)
}
