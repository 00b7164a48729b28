package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/FranksOps/nichescout/internal/pipeline"
)

// Summary aggregates a search run. Lower niche scores mean fewer competing
// pages per unit of search interest, so BestScore is the minimum.
type Summary struct {
	RunID         string        `json:"runId"`
	Keyword       string        `json:"keyword"`
	TotalRecords  int           `json:"totalRecords"`
	MissingCounts int           `json:"missingCounts"`
	CountErrors   int           `json:"countErrors"`
	DomainErrors  int           `json:"domainErrors"`
	TotalDomains  int           `json:"totalDomains"`
	BestTerm      string        `json:"bestTerm,omitempty"`
	BestScore     *int64        `json:"bestScore,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// Summarize aggregates the records of a search result.
func Summarize(res *pipeline.Result) Summary {
	var s Summary
	if res == nil {
		return s
	}
	s.RunID = res.RunID
	s.Keyword = res.Keyword
	s.Duration = res.Duration

	for _, r := range res.Records {
		s.TotalRecords++
		if r.ResultCount == nil {
			s.MissingCounts++
		}
		if r.CountError != "" {
			s.CountErrors++
		}
		if r.DomainError != "" {
			s.DomainErrors++
		}
		s.TotalDomains += len(r.SuggestedDomains)

		if r.NicheScore != nil && (s.BestScore == nil || *r.NicheScore < *s.BestScore) {
			score := *r.NicheScore
			s.BestScore = &score
			s.BestTerm = r.TrendQuery
		}
	}
	return s
}

type jsonReport struct {
	Summary Summary           `json:"summary"`
	Records []pipeline.Record `json:"records"`
}

// WriteJSON writes the summary and records as indented JSON.
func WriteJSON(w io.Writer, res *pipeline.Result) error {
	out := jsonReport{Summary: Summarize(res), Records: []pipeline.Record{}}
	if res != nil && res.Records != nil {
		out.Records = res.Records
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

const textTmpl = `Niche research: {{.Summary.Keyword}}
-----------------------------------
Run:        {{.Summary.RunID}}
Duration:   {{.Summary.Duration}}
Terms:      {{.Summary.TotalRecords}}
No count:   {{.Summary.MissingCounts}}
Failures:   {{.Summary.CountErrors}} scrape, {{.Summary.DomainErrors}} domain
{{- if .Summary.BestScore}}
Best niche: {{.Summary.BestTerm}} (score {{deref .Summary.BestScore}})
{{- end}}

{{range .Records -}}
* {{.TrendQuery}} (trend {{.TrendValue}})
    results: {{count .ResultCount .CountError}}
    score:   {{optional .NicheScore}}
    domains: {{domains .SuggestedDomains .DomainError}}
{{else -}}
No related terms found.
{{end -}}
`

var textFuncs = template.FuncMap{
	"deref": func(p *int64) int64 { return *p },
	"optional": func(p *int64) string {
		if p == nil {
			return "-"
		}
		return fmt.Sprint(*p)
	},
	"count": func(p *int64, errMsg string) string {
		if errMsg != "" {
			return "error: " + errMsg
		}
		if p == nil {
			return "-"
		}
		return fmt.Sprint(*p)
	},
	"domains": func(ds []string, errMsg string) string {
		if errMsg != "" {
			return "error: " + errMsg
		}
		if len(ds) == 0 {
			return "none"
		}
		return strings.Join(ds, ", ")
	},
}

var textReport = template.Must(template.New("textReport").Funcs(textFuncs).Parse(textTmpl))

// WriteText writes a human-readable report.
func WriteText(w io.Writer, res *pipeline.Result) error {
	data := struct {
		Summary Summary
		Records []pipeline.Record
	}{Summary: Summarize(res)}
	if res != nil {
		data.Records = res.Records
	}

	if err := textReport.Execute(w, data); err != nil {
		return fmt.Errorf("report: render text: %w", err)
	}
	return nil
}
