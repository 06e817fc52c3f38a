package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"skillgap/gap"
	"skillgap/remote"
	"skillgap/skill"
	"skillgap/store"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	goodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

// DisableColor strips all styling from table output.
func DisableColor() {
	headerStyle = lipgloss.NewStyle()
	dimStyle = lipgloss.NewStyle()
	goodStyle = lipgloss.NewStyle()
	warnStyle = lipgloss.NewStyle()
	badStyle = lipgloss.NewStyle()
	titleStyle = lipgloss.NewStyle()
}

const (
	pad     = 2
	maxDesc = 60
)

// RecordTable renders local skill records.
func RecordTable(w io.Writer, recs []skill.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(os.Stderr, "No skills found.")
		return
	}

	nameW, statusW, sourceW := 6, 8, 8
	for _, r := range recs {
		nameW = max(nameW, min(len(r.Name)+pad, 40)) //nolint:mnd // max name column width
		statusW = max(statusW, len(r.Status.Label())+pad+2)
		sourceW = max(sourceW, len(r.Source)+pad)
	}

	header := fmt.Sprintf("%-*s %-*s %-*s %-6s %s",
		nameW, "NAME", statusW, "STATUS", sourceW, "SOURCE", "SYNC", "DESCRIPTION")
	fmt.Fprintln(w, headerStyle.Render(header))

	for _, r := range recs {
		status := r.Status.Icon() + " " + r.Status.Label()
		synced := dimStyle.Render("--")
		if r.IsSynced {
			synced = goodStyle.Render("yes")
		}
		fmt.Fprintf(w, "%-*s %-*s %-*s %-6s %s\n",
			nameW, truncate(r.Name, nameW-pad), statusW, status, sourceW, r.Source,
			synced, stringOrDash(truncate(r.Description, maxDesc)))
	}
}

// CatalogTable renders marketplace skills and any per-source failures.
func CatalogTable(w io.Writer, cat remote.Catalog) {
	if len(cat.Skills) == 0 {
		fmt.Fprintln(os.Stderr, "No marketplace skills found.")
	} else {
		nameW, srcW := 6, 8
		for _, m := range cat.Skills {
			nameW = max(nameW, min(len(m.Name)+pad, 40)) //nolint:mnd // max name column width
			srcW = max(srcW, len(m.Source.Owner+"/"+m.Source.Repo)+pad)
		}
		header := fmt.Sprintf("%-*s %-*s %s", nameW, "NAME", srcW, "SOURCE", "DESCRIPTION")
		fmt.Fprintln(w, headerStyle.Render(header))
		for _, m := range cat.Skills {
			fmt.Fprintf(w, "%-*s %-*s %s\n",
				nameW, truncate(m.Name, nameW-pad), srcW, m.Source.Owner+"/"+m.Source.Repo,
				stringOrDash(truncate(m.Description, maxDesc)))
		}
	}
	for _, e := range cat.Errors {
		fmt.Fprintln(w, badStyle.Render("! "+e.Error()))
	}
}

// GapTable renders a gap analysis against the named reference set.
func GapTable(w io.Writer, reference string, res gap.Result) {
	fmt.Fprintln(w, titleStyle.Render("Coverage vs "+reference))
	fmt.Fprintf(w, "%s  %d of %d present\n\n",
		coverageStyle(res.CoveragePercentage).Render(strconv.Itoa(res.CoveragePercentage)+"%"),
		len(res.Present), res.TotalAvailable)

	if len(res.Missing) == 0 {
		fmt.Fprintln(w, goodStyle.Render("Nothing missing."))
		return
	}
	fmt.Fprintln(w, headerStyle.Render("MISSING"))
	for _, r := range res.Missing {
		fmt.Fprintf(w, "  %s %s  %s\n", r.Status.Icon(), r.Name, dimStyle.Render(truncate(r.Description, maxDesc)))
	}
}

// ImportReport renders the outcome of a batch import.
func ImportReport(w io.Writer, report gap.BatchReport) {
	style := goodStyle
	if len(report.Failures) > 0 {
		style = warnStyle
	}
	fmt.Fprintln(w, style.Render(report.Summary()))
	for _, dest := range report.Imported {
		fmt.Fprintf(w, "  + %s\n", dest)
	}
	for _, f := range report.Failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		fmt.Fprintf(w, "  %s %s: %s\n", badStyle.Render("x"), f.Name, msg)
	}
}

// DependencyTable renders missing dependencies per skill, sorted by skill.
func DependencyTable(w io.Writer, deps map[string][]string) {
	if len(deps) == 0 {
		fmt.Fprintln(w, goodStyle.Render("All declared dependencies are present."))
		return
	}
	names := make([]string, 0, len(deps))
	nameW := 7
	for name := range deps {
		names = append(names, name)
		nameW = max(nameW, len(name)+pad)
	}
	sort.Strings(names)

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-*s %s", nameW, "SKILL", "MISSING")))
	for _, name := range names {
		fmt.Fprintf(w, "%-*s %s\n", nameW, name, warnStyle.Render(strings.Join(deps[name], ", ")))
	}
}

// HistoryTable renders recent scans, the latest coverage snapshot and
// recent operations.
func HistoryTable(w io.Writer, scans []*store.ScanRun, cov *store.CoverageSnapshot, ops []*store.Operation) {
	fmt.Fprintln(w, titleStyle.Render("Scans"))
	if len(scans) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  none"))
	} else {
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-18s %8s %8s %8s %8s", "STARTED", "RECORDS", "ACTIVE", "GLOBAL", "TOOK")))
		for _, s := range scans {
			fmt.Fprintf(w, "%-18s %8d %8d %8d %8s\n",
				formatTime(s.StartedAt), s.RecordCount, s.ActiveCount, s.GlobalCount,
				(time.Duration(s.DurationMs) * time.Millisecond).String())
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Coverage"))
	if cov == nil {
		fmt.Fprintln(w, dimStyle.Render("  none"))
	} else {
		fmt.Fprintf(w, "  %s vs %s, %d of %d present (%s)\n",
			coverageStyle(cov.Percentage).Render(strconv.Itoa(cov.Percentage)+"%"),
			cov.Reference, cov.Present, cov.Total, formatTime(cov.TakenAt))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Operations"))
	if len(ops) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  none"))
		return
	}
	nameW := 6
	for _, op := range ops {
		nameW = max(nameW, min(len(op.SkillName)+pad, 40)) //nolint:mnd // max name column width
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-18s %-8s %-*s %-4s %s", "AT", "KIND", nameW, "SKILL", "OK", "DETAIL")))
	for _, op := range ops {
		ok, detail := goodStyle.Render("yes"), op.Target
		if !op.OK {
			ok, detail = badStyle.Render("no "), op.Error
		}
		fmt.Fprintf(w, "%-18s %-8s %-*s %-4s %s\n",
			formatTime(op.At), op.Kind, nameW, truncate(op.SkillName, nameW-pad), ok, stringOrDash(detail))
	}
}

// Messagef prints a simple formatted message line.
func Messagef(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}

func coverageStyle(pct int) lipgloss.Style {
	switch {
	case pct >= 80: //nolint:mnd // coverage thresholds
		return goodStyle
	case pct >= 50: //nolint:mnd // coverage thresholds
		return warnStyle
	default:
		return badStyle
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "--"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func stringOrDash(s string) string {
	if s == "" {
		return dimStyle.Render("--")
	}
	return s
}
