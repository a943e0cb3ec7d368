package document

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prolog emitted at the top of every file. The %TAG directive maps the !u!
// shorthand used by object headers.
const Prolog = "%YAML 1.1\n%TAG !u! tag:unity3d.com,2011:\n"

// headerPattern matches object headers: --- !u!{classId} &{handle}[ stripped].
// Handles may be negative.
var headerPattern = regexp.MustCompile(`^--- !u!(\d+) &(-?\d+)( stripped)?\s*$`)

// ParseError reports a malformed input file. It is fatal for that file only;
// batch drivers carry on with siblings.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("parse %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("parse line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load reads and parses a file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}
	doc.SourcePath = path
	return doc, nil
}

// Parse parses a complete multi-object file. The %YAML/%TAG prolog is
// tolerated but not required. A file with no object headers parses to an
// empty document.
func Parse(content []byte) (*Document, error) {
	lines := strings.Split(string(content), "\n")

	type docStart struct {
		line     int
		class    ClassID
		handle   Handle
		stripped bool
	}
	var starts []docStart

	for i, line := range lines {
		m := headerPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		classID, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			return nil, &ParseError{Line: i + 1, Err: fmt.Errorf("class id %q: %w", m[1], err)}
		}
		handle, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return nil, &ParseError{Line: i + 1, Err: fmt.Errorf("handle %q: %w", m[2], err)}
		}
		starts = append(starts, docStart{
			line:     i,
			class:    ClassID(classID),
			handle:   Handle(handle),
			stripped: m[3] != "",
		})
	}

	doc := &Document{}
	for idx, start := range starts {
		end := len(lines)
		if idx+1 < len(starts) {
			end = starts[idx+1].line
		}
		body := strings.Join(lines[start.line+1:end], "\n")

		data, err := parseBody(body)
		if err != nil {
			return nil, &ParseError{
				Line: start.line + 1,
				Err:  fmt.Errorf("object !u!%d &%d: %w", uint32(start.class), int64(start.handle), err),
			}
		}

		doc.Add(&Object{
			Class:    start.class,
			Handle:   start.handle,
			Stripped: start.stripped,
			Data:     data,
		})
	}

	return doc, nil
}

func parseBody(body string) (*Map, error) {
	if strings.TrimSpace(body) == "" {
		return NewMap(), nil
	}
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(body), &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return NewMap(), nil
	}
	v, err := convertNode(root.Content[0], "")
	if err != nil {
		return nil, err
	}
	if v.Kind != KindMap {
		return nil, fmt.Errorf("object body is %s, want mapping", v.Kind)
	}
	return v.Map, nil
}

// convertNode turns a yaml node into a Value. parentKey is the mapping key
// whose value this node is, used to keep GUID strings opaque.
func convertNode(n *yaml.Node, parentKey string) (*Value, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return convertNode(n.Alias, parentKey)

	case yaml.ScalarNode:
		return convertScalar(n, parentKey), nil

	case yaml.SequenceNode:
		seq := make([]*Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := convertNode(c, "")
			if err != nil {
				return nil, err
			}
			seq = append(seq, v)
		}
		return &Value{Kind: KindSeq, Seq: seq}, nil

	case yaml.MappingNode:
		m := NewMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			v, err := convertNode(n.Content[i+1], key)
			if err != nil {
				return nil, err
			}
			m.Set(key, v)
		}
		if ref, ok := refFromMap(m); ok {
			return &Value{Kind: KindRef, Ref: ref}, nil
		}
		return &Value{Kind: KindMap, Map: m}, nil
	}

	return nil, fmt.Errorf("unsupported yaml node kind %d", n.Kind)
}

func convertScalar(n *yaml.Node, parentKey string) *Value {
	// Quoted scalars are always strings, whatever they look like.
	if n.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) != 0 {
		return StringValue(n.Value)
	}
	// GUIDs are opaque hex identifiers; a run of digits with a stray 'e'
	// must not be scalar-typed into a float.
	if parentKey == "guid" {
		if n.Value == "" {
			return NullValue()
		}
		return StringValue(n.Value)
	}
	return typeScalar(n.Value)
}

// typeScalar applies the dialect's scalar typing rules: null forms, integers
// (leading zeros preserved as strings), floats, everything else a string.
func typeScalar(s string) *Value {
	switch s {
	case "", "~", "null":
		return NullValue()
	case ".nan":
		return FloatValue(math.NaN())
	case ".inf", "+.inf":
		return FloatValue(math.Inf(1))
	case "-.inf":
		return FloatValue(math.Inf(-1))
	}

	stripped := strings.TrimPrefix(s, "-")
	if isDigits(stripped) {
		// Leading zeros mean the author wrote a string (bone hashes, guids).
		if len(stripped) > 1 && stripped[0] == '0' {
			return StringValue(s)
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IntValue(i)
		}
		// Digit run too large for int64: keep the exact text.
		return StringValue(s)
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FloatValue(f)
	}

	return StringValue(s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// refFromMap recognizes reference mappings: keys a subset of
// {fileID, guid, type} with fileID present and integral.
func refFromMap(m *Map) (*Ref, bool) {
	if m.Len() == 0 || m.Len() > 3 {
		return nil, false
	}
	fid, ok := m.Get("fileID")
	if !ok || fid.Kind != KindInt {
		return nil, false
	}
	r := &Ref{Handle: Handle(fid.Int)}
	for _, k := range m.Keys() {
		switch k {
		case "fileID":
		case "guid":
			v, _ := m.Get(k)
			if v.Kind != KindString {
				return nil, false
			}
			r.GUID = v.Str
		case "type":
			v, _ := m.Get(k)
			if v.Kind != KindInt {
				return nil, false
			}
			r.Type = v.Int
		default:
			return nil, false
		}
	}
	return r, true
}
