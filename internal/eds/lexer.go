package eds

import (
	"fmt"
	"strings"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
)

type entry struct {
	Key    string
	Fields []string
	Line   int
}

// Field returns the n-th field (1-based) or "" when absent.
func (e entry) Field(n int) string {
	if n < 1 || n > len(e.Fields) {
		return ""
	}
	return e.Fields[n-1]
}

type section struct {
	Name    string
	Entries []entry
}

// Get returns the first entry with key, ignoring case.
func (s *section) Get(key string) (entry, bool) {
	if s == nil {
		return entry{}, false
	}
	for _, e := range s.Entries {
		if strings.EqualFold(e.Key, key) {
			return e, true
		}
	}
	return entry{}, false
}

// Value returns the first field of key.
func (s *section) Value(key string) string {
	e, _ := s.Get(key)
	return e.Field(1)
}

// numbered returns the entries whose key is prefix followed by a decimal
// number, in document order, with that number.
func (s *section) numbered(prefix string) []numberedEntry {
	if s == nil {
		return nil
	}
	var out []numberedEntry
	for _, e := range s.Entries {
		if len(e.Key) <= len(prefix) || !strings.EqualFold(e.Key[:len(prefix)], prefix) {
			continue
		}
		n, ok := parseUint(e.Key[len(prefix):])
		if !ok {
			continue
		}
		out = append(out, numberedEntry{N: uint32(n), entry: e})
	}
	return out
}

type numberedEntry struct {
	N uint32
	entry
}

type document struct {
	Sections []*section
}

// Section looks a section up by name, ignoring case.
func (d *document) Section(name string) *section {
	for _, s := range d.Sections {
		if strings.EqualFold(s.Name, name) {
			return s
		}
	}
	return nil
}

type lexer struct {
	src       string
	pos       int
	line      int
	lineStart bool
	report    *types.Report
}

// lex splits an EDS file into sections and entries. An entry is
// `Key = field, field, ...;` and may span lines; `$` starts a comment
// outside quotes and adjacent quoted strings are joined. An unterminated
// quote is fatal. Entries lacking `=` or `;` are reported and skipped or
// closed at the next section header.
func lex(data []byte, report *types.Report) (*document, error) {
	src := strings.TrimPrefix(string(data), "\ufeff")
	l := &lexer{src: src, line: 1, lineStart: true, report: report}
	doc := &document{}
	var cur *section

	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.newline()
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '$':
			l.skipComment()
		case c == '[' && l.lineStart:
			name, err := l.header()
			if err != nil {
				return nil, err
			}
			cur = &section{Name: name}
			doc.Sections = append(doc.Sections, cur)
		default:
			l.lineStart = false
			e, ok, err := l.entry()
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if cur == nil {
				l.report.Warnf(types.CodeEDSMalformedEntry, fmt.Sprintf("/line/%d", e.Line), "Entry %q outside of any section", e.Key)
				continue
			}
			cur.Entries = append(cur.Entries, e)
		}
	}
	return doc, nil
}

func (l *lexer) newline() {
	l.pos++
	l.line++
	l.lineStart = true
}

func (l *lexer) skipComment() {
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		l.pos++
	}
}

func (l *lexer) header() (string, error) {
	start := l.pos + 1
	for i := start; i < len(l.src); i++ {
		switch l.src[i] {
		case ']':
			l.pos = i + 1
			l.lineStart = false
			return strings.TrimSpace(l.src[start:i]), nil
		case '\n':
			return "", fmt.Errorf("%w: unterminated section header on line %d", types.ErrMalformedDocument, l.line)
		}
	}
	return "", fmt.Errorf("%w: unterminated section header on line %d", types.ErrMalformedDocument, l.line)
}

func (l *lexer) entry() (entry, bool, error) {
	e := entry{Line: l.line}

	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '=' {
			break
		}
		if c == '\n' || c == ';' {
			l.report.Warnf(types.CodeEDSMalformedEntry, fmt.Sprintf("/line/%d", e.Line),
				"Entry %q has no '='", strings.TrimSpace(l.src[start:l.pos]))
			if c == ';' {
				l.pos++
			}
			return e, false, nil
		}
		l.pos++
	}
	if l.pos >= len(l.src) {
		l.report.Warnf(types.CodeEDSMalformedEntry, fmt.Sprintf("/line/%d", e.Line), "Trailing text without '='")
		return e, false, nil
	}
	e.Key = strings.TrimSpace(l.src[start:l.pos])
	l.pos++ // '='

	var raw, quoted strings.Builder
	isQuoted := false
	flush := func() {
		if isQuoted {
			e.Fields = append(e.Fields, quoted.String())
		} else {
			e.Fields = append(e.Fields, strings.TrimSpace(raw.String()))
		}
		raw.Reset()
		quoted.Reset()
		isQuoted = false
	}

	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ';':
			l.pos++
			flush()
			return e, true, nil
		case c == ',':
			l.pos++
			flush()
		case c == '"':
			if err := l.quotedString(&quoted); err != nil {
				return e, false, err
			}
			isQuoted = true
		case c == '$':
			l.skipComment()
		case c == '\n':
			l.newline()
		case c == '[' && l.lineStart:
			l.report.Warnf(types.CodeEDSMalformedEntry, fmt.Sprintf("/line/%d", e.Line), "Entry %q is not terminated by ';'", e.Key)
			flush()
			return e, true, nil
		default:
			if c != ' ' && c != '\t' && c != '\r' {
				l.lineStart = false
			}
			raw.WriteByte(c)
			l.pos++
		}
	}

	l.report.Warnf(types.CodeEDSMalformedEntry, fmt.Sprintf("/line/%d", e.Line), "Entry %q is not terminated by ';'", e.Key)
	flush()
	return e, true, nil
}

func (l *lexer) quotedString(b *strings.Builder) error {
	line := l.line
	l.pos++ // opening quote
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '"':
			l.pos++
			l.lineStart = false
			return nil
		case '\\':
			if l.pos+1 < len(l.src) {
				b.WriteByte(l.src[l.pos+1])
				l.pos += 2
				continue
			}
		case '\n':
			l.line++
		}
		b.WriteByte(c)
		l.pos++
	}
	return fmt.Errorf("%w: unterminated string starting on line %d", types.ErrMalformedDocument, line)
}
