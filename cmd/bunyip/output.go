package main

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/entrhq/bunyip/pkg/download"
	"github.com/entrhq/bunyip/pkg/farm"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func agentTable(agents []farm.Agent) string {
	t := newTable("ID", "NAME", "VERSION", "OS", "OS VERSION", "PLATFORM")
	for _, a := range agents {
		version := "-"
		if a.Version > 0 {
			version = strconv.Itoa(a.Version)
		}
		t.Row(a.ID, a.Name, version, a.OSName, a.OSVersion, a.Platform)
	}
	return t.Render() + "\n" + fmt.Sprintf("%d agents\n", len(agents))
}

func resultTable(results []farm.Result) string {
	t := newTable("REQUESTED", "AGENT", "SESSION", "STATUS")
	for _, r := range results {
		agent := "-"
		if r.Agent.ID != "" {
			agent = r.Agent.String()
		}
		if r.OK() {
			t.Row(r.Spec.String(), agent, r.Worker.SessionID, okStyle.Render("started"))
			continue
		}
		t.Row(r.Spec.String(), agent, "-", failStyle.Render(r.Err.Error()))
	}
	return t.Render() + "\n"
}

func workerTable(tracked []farm.Worker, remote []farm.RemoteWorker) string {
	t := newTable("SESSION", "BROWSER", "OS", "STATUS")
	seen := map[string]bool{}
	for _, w := range tracked {
		seen[w.SessionID] = true
		t.Row(w.SessionID, w.Agent.Name+" "+strconv.Itoa(w.Agent.Version), w.Agent.OSName+" "+w.Agent.OSVersion, "tracked")
	}
	for _, w := range remote {
		if seen[w.ID] {
			continue
		}
		t.Row(w.ID, w.Browser+" "+w.Version, w.OS+" "+w.OSVersion, w.Status)
	}
	return t.Render() + "\n"
}

// newProgressPrinter renders download progress as a bar on w, redrawing
// only when the whole percentage changes.
func newProgressPrinter(w io.Writer) download.ProgressFunc {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))

	var (
		mu   sync.Mutex
		last = -1
	)
	return func(loaded, total int64) {
		mu.Lock()
		defer mu.Unlock()

		if total <= 0 {
			fmt.Fprintf(w, "\r%d KB", loaded/1024)
			return
		}
		pct := int(loaded * 100 / total)
		if pct == last {
			return
		}
		last = pct
		fmt.Fprintf(w, "\r%s", bar.ViewAs(float64(loaded)/float64(total)))
		if loaded >= total {
			fmt.Fprintln(w)
		}
	}
}
