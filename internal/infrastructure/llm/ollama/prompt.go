package ollama

import (
	"encoding/json"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
)

func buildSeverityPrompt(input domain.JudgeInput) string {
	payload, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		payload = []byte("{}")
	}

	return `You are an ingestion incident judge for one data source.
Return strict JSON object with a single key:
severity (string, one of "urgent", "needs_attention", "all_good").
No markdown, no extra keys.

Guidance:
- "urgent": files expected by the contract are missing today, or three or more independent signals fired.
- "needs_attention": at least one signal fired (volume deviation, files outside the upload window, historical uploads, duplicated or failed files, unexpected empty files).
- "all_good": no signals fired.
The comparison payload under evidence.missing is informational and is present for every source; judge it by expected_files versus files_today, not by its presence.

Source evidence:
` + string(payload)
}
