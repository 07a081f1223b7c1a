package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// Lines are only classified here. Where a statement or an array value ends
// is decided by the toml decoder, and Save verifies the edited document.

var errScan = errors.New("manifest: unsupported toml layout")

var (
	arrayHeaderLine = regexp.MustCompile(`^[ \t]*\[\[`)
	tableHeaderLine = regexp.MustCompile(`^[ \t]*\[([^\[\]#]+)\][ \t]*(#.*)?$`)
	keyLine         = regexp.MustCompile(`^[ \t]*([A-Za-z0-9_\-]+|"[^"\\]*"|'[^']*')[ \t]*([.=])`)
)

type span struct {
	start int
	end   int
}

// statement is one top-level key of the edited table.
type statement struct {
	key   string
	value int
	end   int
}

type tableLayout struct {
	found     bool
	headerEnd int
	stmts     []statement
}

func lineEnd(src []byte, pos int) int {
	if i := bytes.IndexByte(src[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(src)
}

func decodes(doc string) bool {
	var v map[string]any
	_, err := toml.Decode(doc, &v)
	return err == nil
}

// statementEnd returns the end of the shortest run of whole lines starting
// at start that decodes on its own.
func statementEnd(src []byte, start, end int) (int, error) {
	for {
		if decodes(string(src[start:end])) {
			return end, nil
		}
		if end >= len(src) {
			return 0, fmt.Errorf("%w: statement at offset %d does not terminate", errScan, start)
		}
		end = lineEnd(src, end)
	}
}

func scanTable(src []byte, table string) (tableLayout, error) {
	var lay tableLayout
	root, inTable := true, false
	for pos := 0; pos < len(src); {
		end := lineEnd(src, pos)
		line := strings.TrimRight(string(src[pos:end]), "\r\n")
		switch {
		case arrayHeaderLine.MatchString(line):
			root, inTable = false, false
		case tableHeaderLine.MatchString(line):
			name := unquoteKey(strings.TrimSpace(tableHeaderLine.FindStringSubmatch(line)[1]))
			root, inTable = false, name == table
			if inTable {
				if lay.found {
					return lay, fmt.Errorf("%w: [%s] declared twice", errScan, table)
				}
				lay.found, lay.headerEnd = true, end
			}
		case keyLine.MatchString(line):
			m := keyLine.FindStringSubmatchIndex(line)
			key := unquoteKey(line[m[2]:m[3]])
			if root && key == table {
				return lay, fmt.Errorf("%w: %s defined outside a table header", errScan, table)
			}
			stmtEnd, err := statementEnd(src, pos, end)
			if err != nil {
				return lay, err
			}
			if inTable {
				st := statement{end: stmtEnd}
				if line[m[4]] == '=' {
					st.key, st.value = key, pos+m[1]
				}
				lay.stmts = append(lay.stmts, st)
			}
			end = stmtEnd
		}
		pos = end
	}
	return lay, nil
}

// arraySpan locates the array value of st: the shortest bracketed prefix
// that decodes.
func arraySpan(src []byte, st statement) (span, error) {
	start := st.value
	for start < st.end && (src[start] == ' ' || src[start] == '\t') {
		start++
	}
	if start >= st.end || src[start] != '[' {
		return span{}, fmt.Errorf("%w: %s is not an array", errScan, st.key)
	}
	for i := start + 1; i < st.end; i++ {
		if src[i] == ']' && decodes("v = "+string(src[start:i+1])) {
			return span{start: start, end: i + 1}, nil
		}
	}
	return span{}, fmt.Errorf("%w: unterminated array %s", errScan, st.key)
}

// spliceArray rewrites table.key to an array of values, inserting the key
// (and the table) when it does not exist.
func spliceArray(src []byte, table, key string, values []string) ([]byte, error) {
	lay, err := scanTable(src, table)
	if err != nil {
		return nil, err
	}
	rendered, err := renderArray(values)
	if err != nil {
		return nil, err
	}
	for _, st := range lay.stmts {
		if st.key != key {
			continue
		}
		sp, err := arraySpan(src, st)
		if err != nil {
			return nil, err
		}
		return replaceSpan(src, sp, rendered), nil
	}

	k, err := quoteKey(key)
	if err != nil {
		return nil, err
	}
	line := k + " = " + rendered + "\n"
	if !lay.found {
		prefix := ""
		if len(src) > 0 && src[len(src)-1] != '\n' {
			prefix = "\n"
		}
		if len(src) > 0 {
			prefix += "\n"
		}
		t, err := quoteKey(table)
		if err != nil {
			return nil, err
		}
		return insertAt(src, len(src), prefix+"["+t+"]\n"+line), nil
	}

	at := lay.headerEnd
	if n := len(lay.stmts); n > 0 {
		at = lay.stmts[n-1].end
	}
	if at > 0 && src[at-1] != '\n' {
		line = "\n" + line
	}
	return insertAt(src, at, line), nil
}

func replaceSpan(src []byte, sp span, with string) []byte {
	out := make([]byte, 0, len(src)-(sp.end-sp.start)+len(with))
	out = append(out, src[:sp.start]...)
	out = append(out, with...)
	out = append(out, src[sp.end:]...)
	return out
}

func insertAt(src []byte, at int, text string) []byte {
	return replaceSpan(src, span{start: at, end: at}, text)
}

// renderArray formats values the way uv writes dependency arrays.
func renderArray(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	var b strings.Builder
	b.WriteString("[\n")
	for _, v := range values {
		q, err := quoteString(v)
		if err != nil {
			return "", err
		}
		b.WriteString("    ")
		b.WriteString(q)
		b.WriteString(",\n")
	}
	b.WriteString("]")
	return b.String(), nil
}

func quoteKey(k string) (string, error) {
	if k != "" && strings.Trim(k, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-") == "" {
		return k, nil
	}
	return quoteString(k)
}

// quoteString lets the encoder produce a basic string literal for v.
func quoteString(v string) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(map[string]string{"v": v}); err != nil {
		return "", err
	}
	return strings.TrimSuffix(strings.TrimPrefix(buf.String(), "v = "), "\n"), nil
}

func unquoteKey(k string) string {
	if len(k) >= 2 && (k[0] == '"' || k[0] == '\'') && k[len(k)-1] == k[0] {
		return k[1 : len(k)-1]
	}
	return k
}
