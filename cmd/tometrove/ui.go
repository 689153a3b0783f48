package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tometrove/tometrove/internal/domain"
	"github.com/tometrove/tometrove/internal/importer"
	"github.com/tometrove/tometrove/internal/service"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Width(14)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const dateLayout = "2006-01-02"

// newTable returns a table in the house style.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func shortID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}

func formatNum(n *float64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatFloat(*n, 'f', -1, 64)
}

func formatSeries(b *domain.Book) string {
	if b.Series == "" {
		return ""
	}
	if b.NumSeries == nil {
		return b.Series
	}
	return fmt.Sprintf("%s #%s", b.Series, formatNum(b.NumSeries))
}

func formatRead(b *domain.Book) string {
	if b.Read == nil {
		return ""
	}
	return b.Read.Format(dateLayout)
}

// renderBooks writes books as a table, or a note when there are none.
func renderBooks(w io.Writer, books []domain.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No books."))
		return
	}
	t := newTable("ID", "Author", "Title", "Series", "Tags", "Added", "Read")
	for i := range books {
		b := &books[i]
		t.Row(
			shortID(b.UUID),
			b.Author,
			b.Title,
			formatSeries(b),
			strings.Join(b.Tags, ", "),
			b.Added.Format(dateLayout),
			formatRead(b),
		)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d book(s)", len(books))))
}

// renderBook writes every field of one book.
func renderBook(w io.Writer, b *domain.Book, path string) {
	field := func(key, value string) {
		if value == "" {
			value = dimStyle.Render("-")
		}
		fmt.Fprintln(w, keyStyle.Render(key)+value)
	}
	field("uuid", b.UUID)
	field("title", b.Title)
	field("author", b.Author)
	field("series", b.Series)
	field("num_series", formatNum(b.NumSeries))
	field("tags", strings.Join(b.Tags, ", "))
	field("added", b.Added.Format("2006-01-02 15:04"))
	field("read", formatRead(b))
	field("filename", b.Filename)
	field("other_formats", strings.Join(b.OtherFormats, ", "))
	field("path", path)
	if b.Description != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, b.Description)
	}
}

// renderList writes one value per line.
func renderList(w io.Writer, values []string, empty string) {
	if len(values) == 0 {
		fmt.Fprintln(w, dimStyle.Render(empty))
		return
	}
	for _, v := range values {
		fmt.Fprintln(w, v)
	}
}

// renderReport writes the report summary followed by its steps.
func renderReport(w io.Writer, r *domain.Report, verbose bool) {
	mark := passStyle.Render("✓")
	if r.Degraded() {
		mark = warnStyle.Render("⚠")
	}
	fmt.Fprintf(w, "%s %s\n", mark, r.Summary())
	for _, s := range r.Steps {
		noteworthy := s.Outcome == domain.OutcomeFailed || s.Degraded
		if !verbose && !noteworthy {
			continue
		}
		line := fmt.Sprintf("  %-13s %-9s %s", s.Name, s.Outcome, s.Detail)
		switch {
		case s.Outcome == domain.OutcomeFailed:
			line = errorStyle.Render(line)
		case s.Degraded:
			line = warnStyle.Render(line)
		default:
			line = dimStyle.Render(line)
		}
		fmt.Fprintln(w, line)
	}
}

func renderProblems(w io.Writer, problems []service.Problem) {
	for _, p := range problems {
		title := p.Title
		if p.UUID != "" {
			title = fmt.Sprintf("%s (%s)", title, shortID(p.UUID))
		}
		fmt.Fprintf(w, "  %s %s: %s\n", warnStyle.Render("⚠"), title, p.Detail)
	}
}

func renderImport(w io.Writer, s *importer.Summary) {
	mark := passStyle.Render("✓")
	if s.Failed > 0 || s.Degraded > 0 {
		mark = warnStyle.Render("⚠")
	}
	fmt.Fprintf(w, "%s %s %s\n", mark, s.String(), dimStyle.Render("("+s.BatchID+")"))
	renderProblems(w, s.Problems)
}

func renderReorganize(w io.Writer, s *service.ReorganizeSummary) {
	mark := passStyle.Render("✓")
	if len(s.Problems) > 0 {
		mark = warnStyle.Render("⚠")
	}
	fmt.Fprintf(w, "%s %d moved, %d already in place, %d without file, %d missing, %d conflicts\n",
		mark, s.Moved, s.InPlace, s.NoFile, s.Missing, s.Conflicts)
	renderProblems(w, s.Problems)
}

// renderCheck writes a table of the results that need attention, or of all
// results when all is set.
func renderCheck(w io.Writer, results []service.CheckResult, all bool) {
	counts := map[service.CheckStatus]int{}
	t := newTable("ID", "Title", "Status", "Detail")
	rows := 0
	for _, r := range results {
		counts[r.Status]++
		if r.Status == service.CheckOK && !all {
			continue
		}
		detail := r.Detail
		if detail == "" && r.Found != "" {
			detail = "found at " + r.Found
		}
		if detail == "" {
			detail = r.Expected
		}
		t.Row(shortID(r.Book.UUID), r.Book.Title, string(r.Status), detail)
		rows++
	}
	if rows > 0 {
		fmt.Fprintln(w, t.Render())
	}

	mark := passStyle.Render("✓")
	if counts[service.CheckMisplaced]+counts[service.CheckMissing]+counts[service.CheckInvalid] > 0 {
		mark = warnStyle.Render("⚠")
	}
	fmt.Fprintf(w, "%s %d ok, %d misplaced, %d missing, %d invalid\n", mark,
		counts[service.CheckOK], counts[service.CheckMisplaced],
		counts[service.CheckMissing], counts[service.CheckInvalid])
}

func renderTags(w io.Writer, tags []domain.Tag, used map[string]bool) {
	if len(tags) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No tags."))
		return
	}
	t := newTable("ID", "Icon", "Name", "In use")
	for _, tag := range tags {
		inUse := ""
		if used[tag.Name] {
			inUse = "yes"
		}
		t.Row(strconv.FormatInt(tag.ID, 10), tag.Icon, tag.Name, inUse)
	}
	fmt.Fprintln(w, t.Render())
}
