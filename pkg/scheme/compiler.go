package scheme

import (
	"regexp"
	"sort"
	"strings"
)

// Placeholder identifies one of the positional template parameters.
type Placeholder byte

const (
	// Host is the canonical hostname. Only live for multi-host templates.
	Host Placeholder = 'h'
	// Path is the full path without its leading slash.
	Path Placeholder = 'p'
	// Dir is the path up to (not including) its last slash.
	Dir Placeholder = 'd'
	// File is the path after its last slash.
	File Placeholder = 'f'
	// Any is an arbitrary span.
	Any Placeholder = 'a'
)

// String returns the template token, e.g. "%h".
func (p Placeholder) String() string {
	return "%" + string(rune(p))
}

func (p Placeholder) known() bool {
	switch p {
	case Host, Path, Dir, File, Any:
		return true
	}
	return false
}

// group returns the capturing group substituted for the placeholder.
func (p Placeholder) group() string {
	if p == Host {
		return `([A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)*)`
	}
	return `(.*?)`
}

// tokenLen is the length of a placeholder token in the unescaped template.
const tokenLen = 2

// Param is an active placeholder and its byte offset in the unescaped template.
type Param struct {
	Placeholder Placeholder
	Offset      int
}

// Groups maps each active placeholder to the text it captured.
type Groups map[Placeholder]string

// Matcher is the compiled form of a template.
type Matcher struct {
	template  string
	multiHost bool

	// literal is the template with %% escapes collapsed. Placeholder tokens
	// stay in place at the offsets recorded in params.
	literal string
	params  []Param
	re      *regexp.Regexp
}

// Compile turns a template into a Matcher. The %h placeholder is only
// recognized when multiHost is set.
func Compile(template string, multiHost bool) (*Matcher, error) {
	if template == "" {
		return nil, malformed(template, -1, "template is empty")
	}

	var (
		b        strings.Builder
		params   []Param
		seen     = make(map[Placeholder]bool)
		hasAlnum bool
	)

	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '%' {
			b.WriteByte(c)
			if isAlnum(c) {
				hasAlnum = true
			}
			continue
		}

		if i+1 >= len(template) {
			return nil, malformed(template, i, "trailing %%")
		}
		next := template[i+1]
		if next == '%' {
			// Escape: the first % is dropped and scanning resumes after it.
			b.WriteByte('%')
			i++
			continue
		}

		ph := Placeholder(next)
		switch {
		case !ph.known():
			return nil, malformed(template, i, "unknown placeholder %q", "%"+string(next))
		case ph == Host && !multiHost:
			return nil, malformed(template, i, "%%h requires a multi-host proxy")
		case seen[ph]:
			return nil, malformed(template, i, "placeholder %s appears more than once", ph)
		}
		seen[ph] = true
		params = append(params, Param{Placeholder: ph, Offset: b.Len()})
		b.WriteString(ph.String())
		i++
	}

	if !hasAlnum {
		return nil, malformed(template, -1, "template has no literal text and would match any URL")
	}

	sort.Slice(params, func(i, j int) bool { return params[i].Offset < params[j].Offset })

	m := &Matcher{
		template:  template,
		multiHost: multiHost,
		literal:   b.String(),
		params:    params,
	}

	re, err := regexp.Compile(m.buildPattern())
	if err != nil {
		return nil, malformed(template, -1, "pattern does not compile: %v", err)
	}
	m.re = re

	return m, nil
}

// buildPattern escapes the literal text and substitutes capturing groups,
// walking the placeholders from last to first so earlier offsets stay valid.
func (m *Matcher) buildPattern() string {
	pattern := ""
	end := len(m.literal)
	for i := len(m.params) - 1; i >= 0; i-- {
		p := m.params[i]
		pattern = p.Placeholder.group() + regexp.QuoteMeta(m.literal[p.Offset+tokenLen:end]) + pattern
		end = p.Offset
	}
	return "^" + regexp.QuoteMeta(m.literal[:end]) + pattern + "$"
}

// Template returns the raw template the matcher was compiled from.
func (m *Matcher) Template() string {
	return m.template
}

// MultiHost reports whether %h was recognized.
func (m *Matcher) MultiHost() bool {
	return m.multiHost
}

// Pattern returns the anchored regular expression source.
func (m *Matcher) Pattern() string {
	return m.re.String()
}

// Order returns the active placeholders sorted by first appearance.
func (m *Matcher) Order() []Placeholder {
	order := make([]Placeholder, len(m.params))
	for i, p := range m.params {
		order[i] = p.Placeholder
	}
	return order
}

// Has reports whether ph is active in the template.
func (m *Matcher) Has(ph Placeholder) bool {
	for _, p := range m.params {
		if p.Placeholder == ph {
			return true
		}
	}
	return false
}

// Match matches the whole of rawURL. The returned groups are keyed by
// placeholder; ok is false when the URL does not match.
func (m *Matcher) Match(rawURL string) (groups Groups, ok bool) {
	sub := m.re.FindStringSubmatch(rawURL)
	if sub == nil {
		return nil, false
	}
	groups = make(Groups, len(m.params))
	for i, p := range m.params {
		groups[p.Placeholder] = sub[i+1]
	}
	return groups, true
}

// Expand renders the unescaped template with each active placeholder replaced
// by its value. Placeholders without a value become empty.
func (m *Matcher) Expand(values Groups) string {
	out := m.literal
	for i := len(m.params) - 1; i >= 0; i-- {
		p := m.params[i]
		out = out[:p.Offset] + values[p.Placeholder] + out[p.Offset+tokenLen:]
	}
	return out
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
