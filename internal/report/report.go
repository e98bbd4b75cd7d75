package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"deskseed/internal/engine"
	"deskseed/internal/journal"
)

// MaxFailures caps how many failures are listed.
const MaxFailures = 20

// Render writes the run report as tables: run totals, the per-analyst
// outcome tally, per-operation call statistics and the first failures.
func Render(w io.Writer, rep *engine.Report, ops []journal.OpSummary) {
	if rep == nil {
		return
	}
	renderTotals(w, rep)
	if len(rep.Analysts) > 0 {
		renderOutcomes(w, rep)
	}
	if len(ops) > 0 {
		renderOps(w, ops)
	}
	if rep.FailureCount() > 0 {
		renderFailures(w, rep)
	}
}

func newTable(w io.Writer, title string) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle(title)
	tw.SetStyle(table.StyleLight)
	return tw
}

func renderTotals(w io.Writer, rep *engine.Report) {
	tw := newTable(w, fmt.Sprintf("Run %s (%s)", rep.RunID, rep.Flow))
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRow(table.Row{"Seed", rep.Seed})
	tw.AppendRow(table.Row{"Actors usable", fmt.Sprintf("%d/%d", rep.UsableActors, rep.TotalActors)})
	switch rep.Flow {
	case engine.FlowTickets:
		tw.AppendRows([]table.Row{
			{"Analysts promoted", rep.Promoted},
			{"Taxonomy entries", rep.Taxonomy},
			{"Items created", rep.Created},
			{"Items assigned", rep.Assigned},
		})
	case engine.FlowKB:
		tw.AppendRow(table.Row{"Articles created", rep.Articles})
	case engine.FlowSurveys:
		tw.AppendRows([]table.Row{
			{"Surveys completed", rep.SurveysCompleted},
			{"Surveys skipped", rep.SurveysSkipped},
		})
	}
	tw.AppendRow(table.Row{"Failures", rep.FailureCount()})
	tw.Render()
}

func renderOutcomes(w io.Writer, rep *engine.Report) {
	tw := newTable(w, "Lifecycle")
	tw.AppendHeader(table.Row{"Analyst", "Outcome", "Planned", "Completed", "Abandoned", "Shortfall"})
	var planned, completed, abandoned, short int
	for _, a := range rep.Analysts {
		for _, o := range a.Outcomes {
			tw.AppendRow(table.Row{a.Analyst, o.Outcome, o.Planned, o.Completed, o.Abandoned, o.Shortfall})
			planned += o.Planned
			completed += o.Completed
			abandoned += o.Abandoned
			short += o.Shortfall
		}
		tw.AppendSeparator()
	}
	tw.AppendFooter(table.Row{"Total", "", planned, completed, abandoned, short})
	tw.Render()
}

func renderOps(w io.Writer, ops []journal.OpSummary) {
	tw := newTable(w, "Remote calls")
	tw.AppendHeader(table.Row{"Operation", "Calls", "Failures", "Avg"})
	total, failed := 0, 0
	for _, s := range ops {
		tw.AppendRow(table.Row{s.Op, s.Calls, s.Failures, s.Average.String()})
		total += s.Calls
		failed += s.Failures
	}
	tw.AppendFooter(table.Row{"Total", total, failed, ""})
	tw.Render()
}

func renderFailures(w io.Writer, rep *engine.Report) {
	tw := newTable(w, "Failures")
	tw.AppendHeader(table.Row{"#", "Error"})
	for i, err := range rep.Failures.Errors {
		if i == MaxFailures {
			tw.AppendRow(table.Row{"", fmt.Sprintf("... %d more", len(rep.Failures.Errors)-MaxFailures)})
			break
		}
		tw.AppendRow(table.Row{i + 1, strings.TrimSpace(err.Error())})
	}
	tw.Render()
}
