package requirements

import "strings"

// Format renders a manifest in canonical form: package names
// lowercased, no spaces inside specifiers, clauses joined with a bare
// comma. Comment and blank lines pass through verbatim, as do lines
// that failed to parse. Inline comments stay on their line separated
// by two spaces.
func Format(f File) string {
	var b strings.Builder
	for _, line := range f.Lines {
		b.WriteString(formatLine(line))
		b.WriteByte('\n')
	}
	return b.String()
}

func formatLine(line Line) string {
	if line.Kind != LineSpecifier || line.Spec == nil {
		return line.Raw
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(line.Spec.Name))
	for i, c := range line.Spec.Constraints {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(c.Op)
		b.WriteString(c.Raw)
	}
	if line.Comment != "" {
		b.WriteString("  ")
		b.WriteString(line.Comment)
	}
	return b.String()
}
