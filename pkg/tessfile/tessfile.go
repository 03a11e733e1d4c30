// Package tessfile parses the line-oriented input text format of
// spec.md §6: each line opens with a bracketed tag whose last
// whitespace-separated field is the locus identifier, followed by the
// line's content. This package only recognizes the file's syntax; the
// language-specific normalizer/lemmatizer that turns line content into
// word-level features is a separate external collaborator (spec.md §1).
package tessfile

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Line is one parsed record of the input format: the full bracketed tag,
// its locus (the tag's last whitespace-separated field, e.g. "1.12"),
// and the line content that followed the closing bracket.
type Line struct {
	Tag     string
	Locus   string
	Content string
}

// Warning describes a line that failed validation. Validation is
// advisory, not fatal (spec.md §6 "Validation is advisory (warnings),
// not fatal"): a malformed line is skipped and reported, parsing
// continues.
type Warning struct {
	LineNumber int
	Message    string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s", w.LineNumber, w.Message)
}

// Segments splits a line's content on its intra-line break markers
// (spec.md §6 "The separator `/` inside content denotes an intra-line
// break"), trimming surrounding whitespace from each piece.
func (l Line) Segments() []string {
	parts := strings.Split(l.Content, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Parse reads a tagged-line text, returning every well-formed Line in
// order plus a Warning for every line that could not be parsed.
func Parse(r io.Reader) ([]Line, []Warning, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []Line
	var warnings []Warning
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}

		line, err := parseLine(raw)
		if err != nil {
			warnings = append(warnings, Warning{LineNumber: lineNo, Message: err.Error()})
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, warnings, err
	}
	return lines, warnings, nil
}

func parseLine(raw string) (Line, error) {
	trimmed := strings.TrimLeft(raw, " \t")
	if !strings.HasPrefix(trimmed, "<") {
		return Line{}, fmt.Errorf("missing opening tag bracket")
	}
	close := strings.Index(trimmed, ">")
	if close < 0 {
		return Line{}, fmt.Errorf("missing closing tag bracket")
	}

	tag := trimmed[1:close]
	fields := strings.Fields(tag)
	if len(fields) == 0 {
		return Line{}, fmt.Errorf("empty tag")
	}
	locus := fields[len(fields)-1]

	content := strings.TrimLeft(trimmed[close+1:], " \t")
	return Line{Tag: tag, Locus: locus, Content: content}, nil
}
