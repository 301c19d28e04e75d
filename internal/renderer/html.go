package renderer

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/dellplatz/diag-backend/internal/model"
)

//go:embed assets/report.css
var style string

//go:embed report.html.tmpl
var reportSource string

var reportTemplate = template.Must(template.New("report").Parse(reportSource))

type reportView struct {
	Style         template.CSS
	SubjectID     string
	TestName      string
	AnsweredCount int
	QuestionCount int
	EvaluatedAt   string
	Rows          []model.ScoredRow
	Total         int
}

// FormatHTML builds the self-contained report document of an evaluation.
func FormatHTML(ev *model.Evaluation) ([]byte, error) {
	name := ev.TestName
	if name == "" {
		name = ev.TestID
	}

	var buf bytes.Buffer
	err := reportTemplate.Execute(&buf, reportView{
		Style:         template.CSS(style),
		SubjectID:     ev.SubjectID,
		TestName:      name,
		AnsweredCount: ev.AnsweredCount,
		QuestionCount: ev.QuestionCount,
		EvaluatedAt:   ev.EvaluatedAt.Format("02.01.2006 15:04"),
		Rows:          ev.Rows,
		Total:         ev.Total,
	})
	if err != nil {
		return nil, fmt.Errorf("execute report template: %w", err)
	}
	return buf.Bytes(), nil
}
