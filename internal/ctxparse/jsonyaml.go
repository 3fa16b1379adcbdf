package ctxparse

import (
	"bytes"
	"encoding/json"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Field is a key/value pair found in a chunk. Line is 1-based; Offset is the
// byte offset of Value inside the parsed input, or -1 when it cannot be located.
type Field struct {
	Key    string
	Value  string
	Line   int
	Offset int
}

// Fields extracts key/value pairs from b, preferring a structured JSON or
// YAML parse and falling back to line-oriented KEY=VALUE / key: value scanning.
func Fields(b []byte) []Field {
	t := bytes.TrimSpace(b)
	if len(t) > 0 && (t[0] == '{' || t[0] == '[') {
		if fs := JSONFields(b); fs != nil {
			return fs
		}
	}
	if bytes.Contains(b, []byte(":\n")) || bytes.Contains(b, []byte(": |")) {
		if fs := YAMLFields(b); len(fs) > 0 {
			return fs
		}
	}
	return LineFields(b)
}

// JSONFields performs a light pass to extract key/value pairs from a JSON
// document. encoding/json has no positions, so values are located on the
// line that carries their key. It returns nil when b is not valid JSON.
func JSONFields(b []byte) []Field {
	if !json.Valid(b) {
		return nil
	}
	out := []Field{}
	forEachLine(b, func(line []byte, lineNo, off int) {
		for p := 0; p < len(line); {
			i := bytes.IndexByte(line[p:], '"')
			if i < 0 {
				return
			}
			i += p
			j := closingQuote(line, i+1)
			if j < 0 {
				return
			}
			k := skipBlank(line, j+1)
			if k >= len(line) || line[k] != ':' {
				p = j + 1
				continue
			}
			key := string(line[i+1 : j])
			vs := skipBlank(line, k+1)
			if vs >= len(line) {
				return
			}
			switch line[vs] {
			case '"':
				ve := closingQuote(line, vs+1)
				if ve < 0 {
					return
				}
				out = append(out, Field{Key: key, Value: string(line[vs+1 : ve]), Line: lineNo, Offset: off + vs + 1})
				p = ve + 1
			case '{', '[':
				p = vs + 1
			default:
				ve := vs
				for ve < len(line) && bytes.IndexByte([]byte(",}] \t\r"), line[ve]) < 0 {
					ve++
				}
				out = append(out, Field{Key: key, Value: string(line[vs:ve]), Line: lineNo, Offset: off + vs})
				p = ve
			}
		}
	})
	return out
}

func closingQuote(line []byte, from int) int {
	for i := from; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

func skipBlank(line []byte, i int) int {
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return i
}

// YAMLFields uses yaml.v3 node positions and flattens scalars into dotted keys.
func YAMLFields(b []byte) []Field {
	var root yaml.Node
	if err := yaml.Unmarshal(b, &root); err != nil {
		return nil
	}
	starts := lineStarts(b)
	var out []Field
	var walk func(n *yaml.Node, path []string)
	walk = func(n *yaml.Node, path []string) {
		switch n.Kind {
		case yaml.DocumentNode, yaml.SequenceNode:
			for _, c := range n.Content {
				walk(c, path)
			}
		case yaml.MappingNode:
			for i := 0; i+1 < len(n.Content); i += 2 {
				walk(n.Content[i+1], append(path, n.Content[i].Value))
			}
		case yaml.ScalarNode:
			if len(path) > 0 {
				out = append(out, Field{
					Key:    strings.Join(path, "."),
					Value:  n.Value,
					Line:   n.Line,
					Offset: locate(b, starts, n.Line, n.Value),
				})
			}
		}
	}
	walk(&root, nil)
	return out
}

// LineFields scans KEY=VALUE, export KEY=VALUE and key: value lines.
func LineFields(b []byte) []Field {
	var out []Field
	forEachLine(b, func(line []byte, lineNo, off int) {
		trimmed := bytes.TrimLeft(line, " \t")
		lead := len(line) - len(trimmed)
		if len(trimmed) == 0 || trimmed[0] == '#' {
			return
		}
		if bytes.HasPrefix(trimmed, []byte("export ")) {
			trimmed = trimmed[len("export "):]
			lead += len("export ")
		}
		sep := bytes.IndexAny(trimmed, "=:")
		if sep <= 0 {
			return
		}
		key := bytes.TrimSpace(trimmed[:sep])
		key = bytes.Trim(key, `"'`)
		if len(key) == 0 || bytes.ContainsAny(key, " \t") {
			return
		}
		vs := sep + 1
		for vs < len(trimmed) && (trimmed[vs] == ' ' || trimmed[vs] == '\t') {
			vs++
		}
		val := bytes.TrimRight(trimmed[vs:], " \t\r")
		if len(val) >= 2 && (val[0] == '"' || val[0] == '\'') && val[len(val)-1] == val[0] {
			val = val[1 : len(val)-1]
			vs++
		} else {
			val = stripComment(val)
		}
		if len(val) == 0 {
			return
		}
		out = append(out, Field{Key: string(key), Value: string(val), Line: lineNo, Offset: off + lead + vs})
	})
	return out
}

// stripComment cuts an unquoted value at the first '#' preceded by
// whitespace.
func stripComment(val []byte) []byte {
	for i := 1; i < len(val); i++ {
		if val[i] == '#' && (val[i-1] == ' ' || val[i-1] == '\t') {
			return bytes.TrimRight(val[:i], " \t")
		}
	}
	return val
}

func forEachLine(b []byte, fn func(line []byte, lineNo, off int)) {
	lineNo := 0
	for off := 0; off < len(b); {
		lineNo++
		end := bytes.IndexByte(b[off:], '\n')
		if end < 0 {
			end = len(b)
		} else {
			end += off
		}
		fn(b[off:end], lineNo, off)
		off = end + 1
	}
}

func lineStarts(b []byte) []int {
	starts := []int{0}
	for i, c := range b {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// locate finds the first line of val at or after the given 1-based line.
func locate(b []byte, starts []int, line int, val string) int {
	if line < 1 || line > len(starts) || val == "" {
		return -1
	}
	first := val
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	if i := bytes.Index(b[starts[line-1]:], []byte(first)); i >= 0 {
		return starts[line-1] + i
	}
	return -1
}
