package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
	"github.com/kirillkom/ingest-sentinel/internal/core/ports"
)

const (
	narratorToolListSources   = "list_sources"
	narratorToolSourceDetail  = "get_source_cv_and_data"
	narratorToolExecutionDate = "get_execution_date_info"
)

// NarrateUseCase runs the report-writing agent loop: the planner model asks
// for query-surface tools one JSON step at a time and finishes with the
// complete report markdown. Every failure comes back as a *NarrateError so
// the report service can fall back to the deterministic renderer.
type NarrateUseCase struct {
	planner ports.ReportPlanner
	limits  domain.NarrateLimits
}

func NewNarrateUseCase(planner ports.ReportPlanner, limits domain.NarrateLimits) *NarrateUseCase {
	if limits.MaxSteps <= 0 {
		limits.MaxSteps = 12
	}
	if limits.Timeout <= 0 {
		limits.Timeout = 5 * time.Minute
	}
	if limits.StepTimeout <= 0 {
		limits.StepTimeout = 60 * time.Second
	}
	return &NarrateUseCase{planner: planner, limits: limits}
}

// NarrateError reports why the agent loop could not produce a report.
type NarrateError struct {
	Reason string
	Err    error
}

func (e *NarrateError) Error() string {
	return fmt.Sprintf("narrate: %s: %v", e.Reason, e.Err)
}

func (e *NarrateError) Unwrap() error { return e.Err }

type narratorStep struct {
	Type   string                 `json:"type"`
	Tool   string                 `json:"tool"`
	Input  map[string]interface{} `json:"input"`
	Report string                 `json:"report"`
}

func (uc *NarrateUseCase) Narrate(ctx context.Context, query ports.DatasetQuery) (string, error) {
	loopCtx, cancel := context.WithTimeout(ctx, uc.limits.Timeout)
	defer cancel()

	scratchpad := make([]string, 0, uc.limits.MaxSteps)

	for i := 1; i <= uc.limits.MaxSteps; i++ {
		if loopCtx.Err() != nil {
			return "", &NarrateError{Reason: "timeout", Err: loopCtx.Err()}
		}

		stepCtx, stepCancel := context.WithTimeout(loopCtx, uc.limits.StepTimeout)
		planRaw, err := uc.planner.GenerateJSONFromPrompt(stepCtx, buildNarratorPrompt(scratchpad))
		stepCancel()
		if err != nil {
			if isNarratorTimeout(err) {
				return "", &NarrateError{Reason: "timeout", Err: err}
			}
			return "", &NarrateError{Reason: "planner_error", Err: err}
		}

		step, err := parseNarratorStep(planRaw)
		if err != nil {
			repairCtx, repairCancel := context.WithTimeout(loopCtx, uc.limits.StepTimeout)
			repairedRaw, repairErr := uc.planner.GenerateJSONFromPrompt(repairCtx, buildNarratorRepairPrompt(planRaw))
			repairCancel()
			if repairErr != nil {
				if isNarratorTimeout(repairErr) {
					return "", &NarrateError{Reason: "timeout", Err: repairErr}
				}
				return "", &NarrateError{Reason: "planner_invalid_json", Err: repairErr}
			}
			step, err = parseNarratorStep(repairedRaw)
			if err != nil {
				return "", &NarrateError{Reason: "planner_invalid_json", Err: err}
			}
		}

		switch step.Type {
		case "final":
			report := strings.TrimSpace(step.Report)
			if report == "" {
				return "", &NarrateError{Reason: "empty_final_report", Err: fmt.Errorf("planner returned an empty report")}
			}
			return report, nil
		case "tool":
			scratchpad = append(scratchpad, fmt.Sprintf("%s:%s", step.Tool, uc.executeNarratorTool(query, step)))
		default:
			return "", &NarrateError{Reason: "unsupported_step_type", Err: fmt.Errorf("planner step type %q", step.Type)}
		}
	}

	return "", &NarrateError{Reason: "max_iterations", Err: fmt.Errorf("no final report after %d steps", uc.limits.MaxSteps)}
}

// executeNarratorTool never fails the loop: tool errors are fed back to the
// planner through the scratchpad so it can adjust.
func (uc *NarrateUseCase) executeNarratorTool(query ports.DatasetQuery, step narratorStep) string {
	output, err := runNarratorTool(query, step)
	if err != nil {
		errorPayload, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(errorPayload)
	}
	return output
}

func runNarratorTool(query ports.DatasetQuery, step narratorStep) (string, error) {
	switch step.Tool {
	case narratorToolListSources:
		return marshalToolPayload(query.ListSources())
	case narratorToolSourceDetail:
		sourceID := strings.TrimSpace(stringInput(step.Input, "source_id", ""))
		if sourceID == "" {
			return "", fmt.Errorf("%s requires source_id", narratorToolSourceDetail)
		}
		detail, err := query.SourceDetail(sourceID)
		if err != nil {
			if domain.IsKind(err, domain.ErrSourceNotFound) {
				return marshalToolPayload(domain.SourceNotFound{SourceID: sourceID, Error: domain.SourceNotFoundMarker})
			}
			return "", err
		}
		return marshalToolPayload(detail)
	case narratorToolExecutionDate:
		info, err := query.ExecutionDateInfo()
		if err != nil {
			return "", err
		}
		return marshalToolPayload(info)
	default:
		return "", fmt.Errorf("unsupported tool: %s", step.Tool)
	}
}

func marshalToolPayload(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal tool payload: %w", err)
	}
	return string(raw), nil
}

func parseNarratorStep(raw string) (narratorStep, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return narratorStep{}, fmt.Errorf("empty planner response")
	}
	var step narratorStep
	if err := json.Unmarshal([]byte(raw), &step); err != nil {
		return narratorStep{}, fmt.Errorf("unmarshal planner json: %w", err)
	}
	step.Type = strings.ToLower(strings.TrimSpace(step.Type))
	step.Tool = strings.ToLower(strings.TrimSpace(step.Tool))
	return step, nil
}

func isNarratorTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func buildNarratorPrompt(scratchpad []string) string {
	if len(scratchpad) == 0 {
		scratchpad = append(scratchpad, "(no tool outputs yet)")
	}

	return fmt.Sprintf(`You are an operations analyst writing the daily data-source health report.
Return ONLY a valid JSON object with one step.
Schema:
{"type":"tool","tool":"get_execution_date_info","input":{}}
or
{"type":"tool","tool":"list_sources","input":{}}
or
{"type":"tool","tool":"get_source_cv_and_data","input":{"source_id":"..."}}
or
{"type":"final","report":"..."}

Process:
1. Call get_execution_date_info to learn the weekday.
2. Call list_sources for the overview.
3. Call get_source_cv_and_data per source. Read the "File Processing Statistics by Day"
   table in the CV using that weekday's row; Mean Files is the expected file count.

Interpretation rules:
- The CV is the source of truth. What it explicitly allows (permitted lag, allowed
  empty-file percentage) is never an incident.
- Expected files greater than files received means missing files: urgent.
- A week-over-week row ratio above 1.5 or below 0.5, uploads more than 4 hours outside
  the upload window, historical uploads, duplicated/failed files and unexpected empty
  files need attention.
- Do not report a volume decrease that is fully explained by missing files.
- Each source appears exactly once, in its highest-severity section.
- Quote contract table rows verbatim; never invent CV content.

Report template (markdown, follow it exactly):
*Report generated at UTC HOUR*: HH:MM UTC
*  Urgent Action Required*
`+"• * <display_name> (id: <source_id>)* – <detail> → *Action:* <action>"+`
*  Needs Attention*
`+"• * <display_name> (id: <source_id>)* – <detail> → *Action:* <action>"+`
*  All Good*
`+"• * <display_name> (id: <source_id>)* – <date>: `[ <rows> ] records`"+`

Scratchpad with previous tool outputs:
%s
`, strings.Join(scratchpad, "\n"))
}

func buildNarratorRepairPrompt(raw string) string {
	return fmt.Sprintf(`Convert the following text into a valid JSON object for this schema:
{"type":"tool","tool":"list_sources","input":{}}
or {"type":"tool","tool":"get_source_cv_and_data","input":{"source_id":"..."}}
or {"type":"tool","tool":"get_execution_date_info","input":{}}
or {"type":"final","report":"..."}
Return only JSON.
Text:
%s`, raw)
}

func stringInput(input map[string]interface{}, key, fallback string) string {
	if input == nil {
		return fallback
	}
	value, ok := input[key]
	if !ok || value == nil {
		return fallback
	}
	switch typed := value.(type) {
	case string:
		return typed
	default:
		return fmt.Sprint(typed)
	}
}
