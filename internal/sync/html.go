package sync

import (
	"regexp"
	"strings"
)

var (
	reBulletLine = regexp.MustCompile(`^\s*[-*•·–—]\s+\S`)
	reBulletTrim = regexp.MustCompile(`^\s*[-*•·–—]\s+`)
	reDashSep    = regexp.MustCompile(`\s+-\s+`)
	reDashAfter  = regexp.MustCompile(`([.;:])\s*-\s+`)
)

// AsHTML converts free-text descriptions to markup. Text that already
// carries tags passes through untouched; two or more bulleted lines become
// a list, as do "flattened" dash-separated runs; everything else becomes
// paragraphs. Empty input yields an empty string.
func AsHTML(text string) string {
	t := strings.ReplaceAll(text, "\r\n", "\n")
	t = strings.TrimSpace(strings.ReplaceAll(t, "\r", "\n"))
	if t == "" {
		return ""
	}
	if strings.Contains(t, "<") && strings.Contains(t, ">") {
		return t
	}

	lines := strings.Split(t, "\n")
	var bullets []string
	for _, ln := range lines {
		if reBulletLine.MatchString(ln) {
			bullets = append(bullets, strings.TrimSpace(reBulletTrim.ReplaceAllString(ln, "")))
		}
	}
	if len(bullets) >= 2 {
		return ul(bullets)
	}

	// Bullets flattened into one line with " - " separators.
	norm := reDashAfter.ReplaceAllString(t, "$1 - ")
	if strings.Count(norm, " - ") >= 2 {
		var parts []string
		for _, p := range reDashSep.Split(norm, -1) {
			if p = strings.Trim(p, " -"); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) >= 2 {
			return ul(parts)
		}
	}

	var paras []string
	for _, p := range lines {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	if len(paras) == 0 {
		return ""
	}
	return "<p>" + strings.Join(paras, "</p><p>") + "</p>"
}

func ul(items []string) string {
	var b strings.Builder
	b.WriteString("<ul>")
	for _, it := range items {
		b.WriteString("<li>")
		b.WriteString(it)
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}
