package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Telegram caps a message at 4096 characters; leave room for the fence.
const maxStructuredMessageLen = 3800

// Severity ranks a push. The header icon follows it unless Icon is set.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// ParseSeverity maps the risk level names info, warning and critical.
func ParseSeverity(level string) Severity {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "critical":
		return SeverityCritical
	case "warning", "warn":
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

func (s Severity) Icon() string {
	switch s {
	case SeverityCritical:
		return "🚨"
	case SeverityWarning:
		return "⚠️"
	default:
		return "🔁"
	}
}

// marker is the plain-text tag used inside code blocks.
func (s Severity) marker() string {
	switch s {
	case SeverityCritical:
		return "[CRIT]"
	case SeverityWarning:
		return "[WARN]"
	default:
		return "[INFO]"
	}
}

type MessageSection struct {
	Title string
	Lines []string
}

// StructuredMessage is one cycle push: header, code-fenced sections, footer
// and timestamp.
type StructuredMessage struct {
	Icon      string
	Title     string
	Severity  Severity
	Sections  []MessageSection
	Footer    string
	Timestamp time.Time
}

func (m *StructuredMessage) AddSection(title string, lines ...string) *StructuredMessage {
	m.Sections = append(m.Sections, MessageSection{Title: title, Lines: lines})
	return m
}

// Escalate raises the severity. It never lowers it.
func (m *StructuredMessage) Escalate(s Severity) {
	if s > m.Severity {
		m.Severity = s
	}
}

var hundred = decimal.NewFromInt(100)

// FillLine renders one execution, e.g.
// "SOL SELL 1.2/1.5 (80.0%) PARTIAL @ 100.0100".
func FillLine(symbol, side string, filled, target, avg decimal.Decimal, outcome string) string {
	line := fmt.Sprintf("%s %s %s/%s", symbol, side, filled, target)
	if target.IsPositive() {
		line += " (" + filled.Div(target).Mul(hundred).StringFixed(1) + "%)"
	}
	line += " " + outcome
	if filled.IsPositive() && avg.IsPositive() {
		line += " @ " + avg.StringFixed(4)
	}
	return line
}

// AlertLine tags text with its severity.
func AlertLine(s Severity, text string) string {
	return s.marker() + " " + strings.TrimSpace(text)
}

// RenderMarkdown renders Telegram Markdown. When the result is too long,
// trailing sections are dropped whole and counted in a note.
func (m StructuredMessage) RenderMarkdown() string {
	secs := nonEmptySections(m.Sections)
	body := m.render(secs, 0)
	for omitted := 1; len(body) > maxStructuredMessageLen && omitted <= len(secs); omitted++ {
		body = m.render(secs[:len(secs)-omitted], omitted)
	}
	if len(body) > maxStructuredMessageLen {
		body = strings.ToValidUTF8(body[:maxStructuredMessageLen], "") + "..."
	}
	return body
}

func (m StructuredMessage) render(secs []MessageSection, omitted int) string {
	var b strings.Builder
	icon := strings.TrimSpace(m.Icon)
	if icon == "" {
		icon = m.Severity.Icon()
	}
	if header := strings.TrimSpace(icon + " " + strings.TrimSpace(m.Title)); header != "" {
		b.WriteString(header + "\n\n")
	}
	if len(secs) > 0 {
		b.WriteString("```\n")
		for idx, sec := range secs {
			if title := strings.TrimSpace(sec.Title); title != "" {
				b.WriteString(sanitize(title))
				b.WriteString("\n")
			}
			for _, line := range sec.Lines {
				b.WriteString("- ")
				b.WriteString(sanitize(line))
				b.WriteString("\n")
			}
			if idx != len(secs)-1 {
				b.WriteString("\n")
			}
		}
		b.WriteString("```\n\n")
	}
	if omitted > 0 {
		fmt.Fprintf(&b, "(%d more sections omitted)\n", omitted)
	}
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(sanitize(footer))
		b.WriteString("\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("time: " + m.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	return strings.TrimSpace(b.String())
}

func nonEmptySections(secs []MessageSection) []MessageSection {
	out := make([]MessageSection, 0, len(secs))
	for _, sec := range secs {
		lines := make([]string, 0, len(sec.Lines))
		for _, line := range sec.Lines {
			if text := strings.TrimSpace(line); text != "" {
				lines = append(lines, text)
			}
		}
		if len(lines) > 0 {
			out = append(out, MessageSection{Title: sec.Title, Lines: lines})
		}
	}
	return out
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}
