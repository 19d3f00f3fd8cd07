// Package requirements parses pip requirements manifests: the line
// oriented files holding comments, blank lines and package specifiers
// like "pandas==2.1.4" or "boto3>=1.28".
package requirements

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

type LineKind int

const (
	LineBlank LineKind = iota
	LineComment
	LineSpecifier
)

// Line is one physical line of a manifest. Raw preserves the exact
// text so files can round-trip. For specifier lines either Spec or Err
// is set, never both.
type Line struct {
	Number  int
	Raw     string
	Kind    LineKind
	Comment string
	Spec    *Specifier
	Err     error
}

// File is a parsed manifest. Lines appear in file order, including the
// ones that failed to parse.
type File struct {
	Name  string
	Lines []Line
}

// Specifiers returns the successfully parsed specifiers in file order.
func (f File) Specifiers() []Specifier {
	var specs []Specifier
	for _, line := range f.Lines {
		if line.Spec != nil {
			specs = append(specs, *line.Spec)
		}
	}
	return specs
}

// Malformed returns the lines that should have been specifiers but did
// not parse.
func (f File) Malformed() []Line {
	var lines []Line
	for _, line := range f.Lines {
		if line.Err != nil {
			lines = append(lines, line)
		}
	}
	return lines
}

// Parse reads a manifest. Malformed specifier lines are recorded on
// the returned File rather than failing the whole parse, the only
// error returned here is a read failure.
func Parse(name string, r io.Reader) (File, error) {
	file := File{Name: name}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	number := 0
	for scanner.Scan() {
		number++
		raw := scanner.Text()
		file.Lines = append(file.Lines, parseLine(name, number, raw))
	}
	if err := scanner.Err(); err != nil {
		return File{}, fmt.Errorf("read %s: %w", name, err)
	}
	return file, nil
}

// ParseFile reads a manifest from disk. The given path becomes the
// file name findings reference.
func ParseFile(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, err
	}
	defer f.Close()
	return Parse(path, f)
}

func parseLine(file string, number int, raw string) Line {
	line := Line{Number: number, Raw: raw}

	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		line.Kind = LineBlank
		return line
	case strings.HasPrefix(trimmed, "#"):
		line.Kind = LineComment
		return line
	}

	line.Kind = LineSpecifier
	text, comment := splitInlineComment(raw)
	line.Comment = comment

	spec, err := ParseSpecifier(text)
	if err != nil {
		line.Err = err
		return line
	}
	spec.File = file
	spec.Line = number
	line.Spec = &spec
	return line
}

// splitInlineComment cuts a trailing comment off a specifier line. A
// "#" only starts a comment at the beginning of the line or after
// whitespace, so "1!2#broken" stays part of the version text.
func splitInlineComment(raw string) (string, string) {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '#' {
			continue
		}
		if i == 0 || raw[i-1] == ' ' || raw[i-1] == '\t' {
			return raw[:i], strings.TrimSpace(raw[i:])
		}
	}
	return raw, ""
}
