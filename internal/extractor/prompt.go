package extractor

import (
	"fmt"
	"strings"

	"call-analytics-go/internal/types"
)

const promptTemplate = `You are a call quality and customer insights engine.

Analyze the CALL TRANSCRIPT below and return the KPIs in the JSON schema that follows.
Personal details in the transcript have been replaced with placeholders such as [NAME];
never try to guess them.

Your answers MUST be grounded in the transcript:
- NO outside knowledge
- NO hallucinated numbers
- If a KPI cannot be determined, set it to null instead of inventing a value.

----------------------------------------------------------------------
SCHEMA (STRICT - RETURN ONLY JSON)
%s
----------------------------------------------------------------------

FIELD GUIDE:
%s
RULES:
1. Return one JSON object with exactly the keys above.
2. Strings must be concise and professional. Lists become a single string joined with "; ".
3. Numbers must be plain numbers, booleans true or false.
4. DO NOT include commentary.
   DO NOT wrap the JSON in backticks.

----------------------------------------------------------------------
CALL TRANSCRIPT:
%s
----------------------------------------------------------------------
Return ONLY valid JSON that exactly matches the SCHEMA.
`

// BuildPrompt embeds the transcript into the extraction prompt for catalog.
func BuildPrompt(catalog Catalog, transcript string) string {
	var schema, guide strings.Builder
	schema.WriteString("{\n")
	for i, d := range catalog {
		fmt.Fprintf(&schema, "  %q: %s", d.Name, zeroLiteral(d.Type))
		if i < len(catalog)-1 {
			schema.WriteByte(',')
		}
		schema.WriteByte('\n')
	}
	schema.WriteString("}")

	for _, d := range catalog {
		fmt.Fprintf(&guide, "- %s (%s): %s\n", d.Name, d.Type, d.Description)
	}
	return fmt.Sprintf(promptTemplate, schema.String(), guide.String(), transcript)
}

func zeroLiteral(k types.KPIKind) string {
	switch k {
	case types.KPINumber:
		return "0.0"
	case types.KPIBool:
		return "false"
	default:
		return `""`
	}
}
