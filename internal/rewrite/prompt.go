// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rewrite

import (
	"bytes"
	"text/template"
)

// rewritePromptTmpl asks the model for a retrieval query and explicit
// filters as one fixed-shape JSON object.
var rewritePromptTmpl = template.Must(template.New("rewrite").Parse(`You turn research questions into search queries for a biomedical literature index.

Return one JSON object and nothing else, with this shape:
{"rewritten": "<concise keyword query>", "filters": {"years": [<min>, <max>], "venues": [], "fields": [], "species": [], "study_types": [], "outcomes": []}}

Rules:
- Keep gene, protein and disease names exactly as written in the question.
- Drop filler words and politeness; keep every scientific term.
- Set a filter only when the question states it explicitly. Omit the rest.
- "years" is an inclusive publication year range.

Example:
Question: Could you tell me what studies from 2015 to 2020 say about APOE4 and tau in mice?
{"rewritten": "APOE4 tau pathology", "filters": {"years": [2015, 2020], "species": ["mouse"]}}

Question: {{.Question}}
`))

func renderPrompt(question string) (string, error) {
	var buf bytes.Buffer
	if err := rewritePromptTmpl.Execute(&buf, struct{ Question string }{Question: question}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
