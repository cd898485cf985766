// Package report renders scan results for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/vietddude/softscan/internal/core/domain"
)

const (
	statusChecking = "Checking..."
	noRCA          = "No RCA available"
	maxRCAWidth    = 80
)

var headers = []string{"Software", "Installed Version", "Status", "Root Cause Analysis"}

// Row is one line of the result table.
type Row struct {
	Index   int           `json:"index"`
	Name    string        `json:"name"`
	Version string        `json:"installed_version"`
	Safety  domain.Safety `json:"safety"`
	RCA     string        `json:"rca"`
	Done    bool          `json:"-"`
}

// Status returns the text of the Status column.
func (r Row) Status() string {
	if !r.Done {
		return statusChecking
	}
	return string(r.Safety)
}

// Table holds one row per item, addressed by item index.
type Table struct {
	mu   sync.RWMutex
	rows []Row
}

// NewTable creates a table with every row pending.
func NewTable(items []domain.Item) *Table {
	rows := make([]Row, len(items))
	for i, it := range items {
		rows[i] = Row{Index: i, Name: it.Name, Version: it.InstalledVersion}
	}
	return &Table{rows: rows}
}

// Apply fills the row the result belongs to. Results for unknown indexes
// are rejected.
func (t *Table) Apply(r domain.ClassificationResult) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r.ItemIndex < 0 || r.ItemIndex >= len(t.rows) {
		return fmt.Errorf("result index %d out of range [0,%d)", r.ItemIndex, len(t.rows))
	}
	row := &t.rows[r.ItemIndex]
	row.Safety = r.Safety
	row.RCA = r.RCA
	row.Done = true
	return nil
}

// Rows returns a copy of the rows whose name contains filter, ignoring case.
func (t *Table) Rows(filter string) []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()

	filter = strings.ToLower(filter)
	out := make([]Row, 0, len(t.rows))
	for _, r := range t.rows {
		if filter == "" || strings.Contains(strings.ToLower(r.Name), filter) {
			out = append(out, r)
		}
	}
	return out
}

// Detail returns the full RCA of a row, as shown when a row is inspected.
func (t *Table) Detail(index int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if index < 0 || index >= len(t.rows) || t.rows[index].RCA == "" {
		return noRCA
	}
	return t.rows[index].RCA
}

// Summary counts rows per status text.
func (t *Table) Summary() map[string]int {
	counts := make(map[string]int)
	for _, r := range t.Rows("") {
		counts[strings.ToUpper(r.Status())]++
	}
	return counts
}

// statusColor picks the colour of a status cell: red for HARMFUL, green
// for SAFE, yellow for anything else.
func statusColor(r Row) *color.Color {
	if !r.Done {
		return color.New(color.Faint)
	}
	switch strings.ToUpper(string(r.Safety)) {
	case string(domain.SafetyHarmful):
		return color.New(color.FgRed, color.Bold)
	case string(domain.SafetySafe):
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgYellow)
	}
}

// Render writes the filtered table. Columns are padded before colouring so
// escape codes do not disturb alignment.
func (t *Table) Render(w io.Writer, filter string) error {
	rows := t.Rows(filter)

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{r.Name, r.Version, r.Status(), truncate(oneLine(r.RCA), maxRCAWidth)})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, c := range cells {
		for i, v := range c {
			widths[i] = max(widths[i], utf8.RuneCountInString(v))
		}
	}

	bold := color.New(color.Bold)
	line := make([]string, len(headers))
	for i, h := range headers {
		line[i] = bold.Sprint(pad(h, widths[i]))
	}
	if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(line, "  "), " ")); err != nil {
		return err
	}

	for n, c := range cells {
		for i, v := range c {
			line[i] = pad(v, widths[i])
		}
		line[2] = statusColor(rows[n]).Sprint(line[2])
		if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(line, "  "), " ")); err != nil {
			return err
		}
	}
	return nil
}

// RenderJSON writes the filtered rows as a JSON array in item order.
func (t *Table) RenderJSON(w io.Writer, filter string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t.Rows(filter))
}

func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	return string(r[:width-3]) + "..."
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
