// Package display is the plain-terminal presenter for annotation sessions.
package display

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sbenjam1n/annotate/internal/engine"
	"github.com/sbenjam1n/annotate/internal/source"
)

const (
	defaultWidth     = 80
	defaultCacheSize = 256
	timestampLayout  = "2006-01-02 15:04:05"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	highlightStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	taskStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

// Options tunes the layout.
type Options struct {
	Name        string
	Width       int
	ClearScreen bool

	// Phrases are regular expressions highlighted in record values.
	Phrases []string
	// IgnoreCase makes phrase matching case-insensitive.
	IgnoreCase bool
	// TruncateWords cuts values after this many words; 0 shows everything.
	TruncateWords int
}

// Text renders prompts to a writer and reads answers line by line.
type Text struct {
	src  *source.Source
	in   *bufio.Reader
	out  io.Writer
	opts Options

	phrases *regexp.Regexp
	bodies  *lru.Cache[string, string]
}

var _ engine.Presenter = (*Text)(nil)

// New creates a presenter for records of src.
func New(src *source.Source, in io.Reader, out io.Writer, opts Options) (*Text, error) {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	d := &Text{src: src, in: bufio.NewReader(in), out: out, opts: opts}

	if len(opts.Phrases) > 0 {
		pattern := "(?:" + strings.Join(opts.Phrases, ")|(?:") + ")"
		if opts.IgnoreCase {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile highlight phrases: %w", err)
		}
		d.phrases = re
	}

	cache, err := lru.New[string, string](defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create body cache: %w", err)
	}
	d.bodies = cache
	return d, nil
}

// Show writes one full screen for p.
func (d *Text) Show(p engine.Prompt) error {
	var b strings.Builder
	b.WriteString(d.header(p))
	b.WriteString(d.body(p.ID))
	if p.Annotation != nil {
		b.WriteString(annotation(p))
	}
	b.WriteString(d.tasks(p))
	_, err := io.WriteString(d.out, b.String())
	return err
}

// Preload renders the bodies of ids ahead of the session so records show
// without rendering while the annotator waits. It stops once the cache is
// full or ctx is done, and is safe to run alongside Show.
func (d *Text) Preload(ctx context.Context, ids []string) int {
	n := 0
	for _, id := range ids {
		if ctx.Err() != nil || n >= defaultCacheSize {
			break
		}
		d.body(id)
		n++
	}
	return n
}

// ReadInput returns the next line without its line ending. A final line
// without a newline is still returned; after that io.EOF.
// A cancelled ctx abandons the pending read.
func (d *Text) ReadInput(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := d.in.ReadString('\n')
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil && (r.err != io.EOF || r.line == "") {
			return "", r.err
		}
		return strings.TrimRight(r.line, "\r\n"), nil
	}
}

// Clear wipes the terminal when ClearScreen is set.
func (d *Text) Clear() {
	if d.opts.ClearScreen {
		io.WriteString(d.out, "\033[H\033[2J")
	}
}

func (d *Text) rule() string {
	return dimStyle.Render(strings.Repeat("=", d.opts.Width)) + "\n"
}

func (d *Text) header(p engine.Prompt) string {
	var b strings.Builder
	name := d.opts.Name
	if name == "" {
		name = "ANNOTATE"
	}
	b.WriteString(spread(titleStyle.Render(name), p.User, d.opts.Width))
	b.WriteString(d.rule())
	b.WriteString(spread("ID: "+p.ID, counter(p.Index+1, p.Total), d.opts.Width))
	b.WriteString(d.rule())
	return b.String()
}

func (d *Text) body(id string) string {
	if s, ok := d.bodies.Get(id); ok {
		return s
	}
	var b strings.Builder
	fields, ok := d.src.Content(id)
	if !ok {
		b.WriteString(dimStyle.Render("(record not in dataset)") + "\n")
	}
	wrap := lipgloss.NewStyle().Width(d.opts.Width).PaddingLeft(4)
	for _, f := range fields {
		b.WriteString(labelStyle.Render(f.Label) + "\n")
		b.WriteString(wrap.Render(d.highlight(truncate(f.Value, d.opts.TruncateWords))) + "\n\n")
	}
	s := b.String()
	d.bodies.Add(id, s)
	return s
}

func (d *Text) highlight(s string) string {
	if d.phrases == nil {
		return s
	}
	return d.phrases.ReplaceAllStringFunc(s, func(m string) string {
		return highlightStyle.Render(m)
	})
}

func (d *Text) tasks(p engine.Prompt) string {
	var b strings.Builder
	b.WriteString(d.rule())
	if p.Task == nil {
		b.WriteString(taskStyle.Render("Navigation") + "\n")
		b.WriteString(p.Navigation)
	} else {
		t := p.Task
		title := fmt.Sprintf("%s %s", taskStyle.Render(t.Name), dimStyle.Render("("+t.Kind.String()+")"))
		b.WriteString(spread(title, "Task "+counter(t.Pos+1, t.Of), d.opts.Width))
		b.WriteString(t.Instruction())
		b.WriteString("\n")
		b.WriteString(p.Navigation)
	}
	if p.Error != "" {
		b.WriteString(errorStyle.Render(p.Error) + "\n")
	}
	b.WriteString("> ")
	return b.String()
}

func annotation(p engine.Prompt) string {
	row := p.Annotation
	var b strings.Builder
	b.WriteString(taskStyle.Render("Stored annotation") + "\n")
	for _, name := range p.Columns {
		v, ok := row.Value(name)
		if !ok {
			continue
		}
		text := v.Format()
		if v.Null {
			text = dimStyle.Render("none")
		}
		fmt.Fprintf(&b, "    %-20s %s\n", name, text)
	}
	if row.User != "" {
		fmt.Fprintf(&b, "    %-20s %s\n", "user", row.User)
	}
	if !row.Timestamp.IsZero() {
		fmt.Fprintf(&b, "    %-20s %s\n", "timestamp", row.Timestamp.Format(timestampLayout))
	}
	b.WriteString("\n")
	return b.String()
}

// counter renders "i/n" with i padded to the width of n.
func counter(i, n int) string {
	w := len(fmt.Sprint(n))
	return fmt.Sprintf("%*d/%d", w, i, n)
}

// spread puts left and right on one line, right-aligned within width.
func spread(left, right string, width int) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right + "\n"
}

// truncate keeps the first limit words of s.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= limit {
		return s
	}
	return strings.Join(words[:limit], " ") + " [...]"
}
