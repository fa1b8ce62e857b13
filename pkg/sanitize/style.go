package sanitize

import "strings"

// Declarations removed from inline styles so the host theme controls text and background colour.
var themeProperties = map[string]bool{
	"color":            true,
	"background-color": true,
}

var imageSizingProperties = map[string]bool{
	"max-width": true,
	"height":    true,
}

func stripThemeColors(style string) string {
	return joinDeclarations(filterDeclarations(splitDeclarations(style), themeProperties))
}

func withImageSizing(style string) string {
	decls := filterDeclarations(splitDeclarations(style), imageSizingProperties)
	decls = append(decls, "max-width: 100%", "height: auto")
	return joinDeclarations(decls)
}

func filterDeclarations(decls []string, drop map[string]bool) []string {
	kept := decls[:0]
	for _, d := range decls {
		if drop[propertyName(d)] {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}

func propertyName(decl string) string {
	idx := strings.IndexByte(decl, ':')
	if idx < 0 {
		return strings.ToLower(strings.TrimSpace(decl))
	}
	return strings.ToLower(strings.TrimSpace(decl[:idx]))
}

// splitDeclarations splits on semicolons outside parentheses and quotes, so url(...) and
// quoted font names stay intact.
func splitDeclarations(style string) []string {
	var (
		decls []string
		start int
		depth int
		quote rune
	)
	flush := func(end int) {
		if d := strings.TrimSpace(style[start:end]); d != "" {
			decls = append(decls, d)
		}
	}
	for i, r := range style {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case r == ';' && depth == 0:
			flush(i)
			start = i + 1
		}
	}
	flush(len(style))
	return decls
}

func joinDeclarations(decls []string) string {
	return strings.Join(decls, "; ")
}
