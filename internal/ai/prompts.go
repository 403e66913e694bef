package ai

import (
	"bytes"
	"fmt"
	"text/template"
)

const (
	FlowSummarizeStatus      = "summarize_status"
	FlowPredictRisks         = "predict_risks"
	FlowLessonsLearned       = "lessons_learned"
	FlowCriticalPath         = "critical_path"
	FlowSummarizeAllProjects = "summarize_all_projects"
)

var funcs = template.FuncMap{
	"json": toJSON,
}

var prompts = template.Must(template.New("prompts").Funcs(funcs).Parse(`
{{define "header"}}You are an experienced project management assistant. Answer in {{.Language}}. Respond only with JSON matching the given schema.
{{end}}

{{define "` + FlowSummarizeStatus + `"}}{{template "header" .}}
Summarize the current status of the project below for a stakeholder update.
Mention completion, schedule and budget health, and call out blocked or overdue work.

Project:
{{json .Project}}

Tasks:
{{json .Tasks}}
{{end}}

{{define "` + FlowPredictRisks + `"}}{{template "header" .}}
Analyze the project and its tasks and predict the most relevant delivery risks.
For each risk give likelihood and impact (low, medium or high), a mitigation, and the ids of related tasks.

Project:
{{json .Project}}

Tasks:
{{json .Tasks}}
{{end}}

{{define "` + FlowLessonsLearned + `"}}{{template "header" .}}
Write a lessons-learned retrospective for the project below: what went well, what should be improved and concrete recommendations for future projects.

Project:
{{json .Project}}

Tasks:
{{json .Tasks}}
{{end}}

{{define "` + FlowCriticalPath + `"}}{{template "header" .}}
Using the Critical Path Method, identify the critical path of the tasks below.
Use planned dates, effort and the "dependencies" lists (ids of predecessor tasks).
Return the ordered ids of the critical tasks, using only ids from the list, and a short explanation.

Tasks:
{{json .Tasks}}
{{end}}

{{define "` + FlowSummarizeAllProjects + `"}}{{template "header" .}}
Give an executive summary of the project portfolio below and classify each project as on_track, at_risk or off_track with a one sentence note.

Projects:
{{json .Projects}}
{{end}}
`))

func render(flow string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, flow, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", flow, err)
	}
	return buf.String(), nil
}
