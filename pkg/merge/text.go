package merge

import (
	"regexp"
	"strings"

	"github.com/agentstation/syncmerge/pkg/compare"
	"github.com/agentstation/syncmerge/pkg/value"
)

const remoteBanner = "\n\n--- Remote changes ---\n\n"

// Section similarity bounds for text merges. Pairs at or above matchSimilarity
// are treated as the same section; pairs strictly between the bounds are
// wrapped in conflict markers.
const (
	matchSimilarity    = 0.9
	conflictSimilarity = 0.5
)

var sectionBreak = regexp.MustCompile(`\n[ \t]*\n`)

// Markers are the lines that delimit an unresolved text conflict:
//
//	<<<<<<< LOCAL
//	local text
//	=======
//	remote text
//	>>>>>>> MERGED
//
// Remote is optional; when set it is written on its own line before the
// remote text.
type Markers struct {
	Local     string `yaml:"local" json:"local"`
	Separator string `yaml:"separator" json:"separator"`
	Remote    string `yaml:"remote" json:"remote"`
	End       string `yaml:"end" json:"end"`
}

// DefaultMarkers returns the standard conflict markers.
func DefaultMarkers() Markers {
	return Markers{
		Local:     "<<<<<<< LOCAL",
		Separator: "=======",
		End:       ">>>>>>> MERGED",
	}
}

func (m Markers) withDefaults() Markers {
	d := DefaultMarkers()
	if m.Local == "" {
		m.Local = d.Local
	}
	if m.Separator == "" {
		m.Separator = d.Separator
	}
	if m.End == "" {
		m.End = d.End
	}
	return m
}

// Block renders one conflict block.
func (m Markers) Block(local, remote string) string {
	m = m.withDefaults()
	var b strings.Builder
	b.WriteString(m.Local)
	b.WriteByte('\n')
	b.WriteString(local)
	b.WriteByte('\n')
	b.WriteString(m.Separator)
	b.WriteByte('\n')
	if m.Remote != "" {
		b.WriteString(m.Remote)
		b.WriteByte('\n')
	}
	b.WriteString(remote)
	b.WriteByte('\n')
	b.WriteString(m.End)
	return b.String()
}

// Contains reports whether s holds a conflict block delimited by m.
func (m Markers) Contains(s string) bool {
	m = m.withDefaults()
	start := strings.Index(s, m.Local)
	if start < 0 {
		return false
	}
	rest := s[start+len(m.Local):]
	sep := strings.Index(rest, m.Separator)
	return sep >= 0 && strings.Contains(rest[sep+len(m.Separator):], m.End)
}

// ContainsMarkers reports whether v is text holding a conflict block
// delimited by m.
func ContainsMarkers(v value.Value, m Markers) bool {
	t, ok := v.(value.Text)
	return ok && m.Contains(string(t))
}

// Sections splits text into blank-line delimited sections, dropping empty ones.
func Sections(text string) []string {
	parts := sectionBreak.Split(strings.ReplaceAll(text, "\r\n", "\n"), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimRight(p, "\n"))
		}
	}
	return out
}

func (e *Engine) smartText(local, remote value.Value, c call) *Result {
	lt, lok := local.(value.Text)
	rt, rok := remote.(value.Text)
	if !lok || !rok {
		res := e.timestampPriority(local, remote, c)
		res.warn("text merge requires two strings; used timestamp priority")
		return res
	}

	res := &Result{Success: true, Algorithm: SmartText}
	ls, rs := Sections(string(lt)), Sections(string(rt))
	used := make([]bool, len(rs))
	out := make([]string, 0, len(ls)+len(rs))

	for _, section := range ls {
		best, bestSim := -1, -1.0
		for j, candidate := range rs {
			if used[j] {
				continue
			}
			if compare.Equal(value.Text(section), value.Text(candidate), c.compare) {
				best, bestSim = j, 1.0
				break
			}
			if sim := compare.Similarity(section, candidate); sim > bestSim {
				best, bestSim = j, sim
			}
		}

		switch {
		case best >= 0 && bestSim == 1.0:
			used[best] = true
			out = append(out, section)
			res.Diagnostics.Preserved = append(res.Diagnostics.Preserved, firstLine(section))
		case best >= 0 && bestSim >= matchSimilarity:
			used[best] = true
			kept := section
			if len([]rune(rs[best])) > len([]rune(section)) {
				kept = rs[best]
			}
			out = append(out, kept)
			res.ConflictsResolved++
			res.Diagnostics.Preserved = append(res.Diagnostics.Preserved, firstLine(kept))
		case best >= 0 && bestSim > conflictSimilarity:
			used[best] = true
			out = append(out, c.markers.Block(section, rs[best]))
			res.ConflictsRemaining++
			res.Diagnostics.Conflicts = append(res.Diagnostics.Conflicts, firstLine(section))
		default:
			out = append(out, section)
			res.Diagnostics.Preserved = append(res.Diagnostics.Preserved, firstLine(section))
		}
	}

	var remoteOnly []string
	for j, section := range rs {
		if !used[j] {
			remoteOnly = append(remoteOnly, section)
			res.ConflictsResolved++
		}
	}

	merged := strings.Join(out, "\n\n")
	if len(remoteOnly) > 0 {
		sep := "\n\n"
		if c.preserve {
			sep = remoteBanner
		}
		if merged == "" {
			sep = ""
		}
		merged += sep + strings.Join(remoteOnly, "\n\n")
	}

	res.Value = value.Text(merged)
	res.Confidence = 0.85
	if res.ConflictsRemaining > 0 {
		res.Confidence = 0.6
		res.warn("%d section(s) need manual resolution", res.ConflictsRemaining)
	}
	return res
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
