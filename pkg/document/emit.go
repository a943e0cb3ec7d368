package document

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Emit serializes a document back to the tagged YAML dialect. Output always
// uses LF line endings and the standard prolog, so that normalize output is
// byte-stable across platforms.
func Emit(doc *Document) []byte {
	var buf bytes.Buffer
	buf.WriteString(Prolog)

	for _, o := range doc.Objects {
		fmt.Fprintf(&buf, "--- !u!%d &%d", uint32(o.Class), int64(o.Handle))
		if o.Stripped {
			buf.WriteString(" stripped")
		}
		buf.WriteByte('\n')

		if o.Data.Len() > 0 {
			emitMap(&buf, o.Data, 0)
		}
	}

	return buf.Bytes()
}

// Save writes the emitted document to path.
func Save(doc *Document, path string) error {
	if err := os.WriteFile(path, Emit(doc), 0o644); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func emitMap(buf *bytes.Buffer, m *Map, indent int) {
	prefix := strings.Repeat("  ", indent)
	for _, key := range m.Keys() {
		v, _ := m.Get(key)
		emitMapEntry(buf, prefix, key, v, indent)
	}
}

func emitMapEntry(buf *bytes.Buffer, prefix, key string, v *Value, indent int) {
	switch v.Kind {
	case KindRef:
		fmt.Fprintf(buf, "%s%s: %s\n", prefix, key, flowRef(v.Ref))

	case KindMap:
		switch {
		case v.Map.Len() == 0:
			fmt.Fprintf(buf, "%s%s: {}\n", prefix, key)
		case isFlowMap(v.Map):
			fmt.Fprintf(buf, "%s%s: %s\n", prefix, key, flowMap(v.Map))
		default:
			fmt.Fprintf(buf, "%s%s:\n", prefix, key)
			emitMap(buf, v.Map, indent+1)
		}

	case KindSeq:
		if len(v.Seq) == 0 {
			fmt.Fprintf(buf, "%s%s: []\n", prefix, key)
		} else {
			fmt.Fprintf(buf, "%s%s:\n", prefix, key)
			// Sequence items sit at the same indent as their key.
			emitSeq(buf, v.Seq, indent)
		}

	default:
		if s := formatScalar(v); s != "" {
			fmt.Fprintf(buf, "%s%s: %s\n", prefix, key, s)
		} else {
			fmt.Fprintf(buf, "%s%s:\n", prefix, key)
		}
	}
}

func emitSeq(buf *bytes.Buffer, seq []*Value, indent int) {
	prefix := strings.Repeat("  ", indent)

	for _, item := range seq {
		switch item.Kind {
		case KindRef:
			fmt.Fprintf(buf, "%s- %s\n", prefix, flowRef(item.Ref))

		case KindMap:
			emitSeqMapItem(buf, prefix, item.Map, indent)

		case KindSeq:
			fmt.Fprintf(buf, "%s-\n", prefix)
			emitSeq(buf, item.Seq, indent+1)

		default:
			fmt.Fprintf(buf, "%s- %s\n", prefix, formatScalar(item))
		}
	}
}

// emitSeqMapItem renders a mapping sequence element: the first key rides on
// the "- " line, remaining keys are indented one level deeper.
func emitSeqMapItem(buf *bytes.Buffer, prefix string, m *Map, indent int) {
	if m.Len() == 0 {
		fmt.Fprintf(buf, "%s- {}\n", prefix)
		return
	}
	if isFlowMap(m) {
		fmt.Fprintf(buf, "%s- %s\n", prefix, flowMap(m))
		return
	}

	keys := m.Keys()
	first, _ := m.Get(keys[0])

	switch {
	case first.Kind == KindRef:
		fmt.Fprintf(buf, "%s- %s: %s\n", prefix, keys[0], flowRef(first.Ref))
	case first.Kind == KindMap && first.Map.Len() == 0:
		fmt.Fprintf(buf, "%s- %s: {}\n", prefix, keys[0])
	case first.Kind == KindMap && isFlowMap(first.Map):
		fmt.Fprintf(buf, "%s- %s: %s\n", prefix, keys[0], flowMap(first.Map))
	case first.Kind == KindMap:
		fmt.Fprintf(buf, "%s- %s:\n", prefix, keys[0])
		emitMap(buf, first.Map, indent+2)
	case first.Kind == KindSeq && len(first.Seq) > 0:
		fmt.Fprintf(buf, "%s- %s:\n", prefix, keys[0])
		emitSeq(buf, first.Seq, indent+1)
	case first.Kind == KindSeq:
		fmt.Fprintf(buf, "%s- %s: []\n", prefix, keys[0])
	default:
		if s := formatScalar(first); s != "" {
			fmt.Fprintf(buf, "%s- %s: %s\n", prefix, keys[0], s)
		} else {
			fmt.Fprintf(buf, "%s- %s:\n", prefix, keys[0])
		}
	}

	innerPrefix := prefix + "  "
	for _, key := range keys[1:] {
		v, _ := m.Get(key)
		emitMapEntry(buf, innerPrefix, key, v, indent+1)
	}
}

// isFlowMap reports whether a mapping renders in flow style: empty mappings,
// vectors ({x,y,z[,w]}), and colors ({r,g,b,a}) with all-numeric components.
func isFlowMap(m *Map) bool {
	if m.Len() == 0 {
		return true
	}
	return allKeysNumeric(m, "x", "y", "z", "w") || allKeysNumeric(m, "r", "g", "b", "a")
}

func allKeysNumeric(m *Map, allowed ...string) bool {
	for _, k := range m.Keys() {
		ok := false
		for _, a := range allowed {
			if k == a {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
		v, _ := m.Get(k)
		if v.Kind != KindInt && v.Kind != KindFloat {
			return false
		}
	}
	return true
}

func flowMap(m *Map) string {
	parts := make([]string, 0, m.Len())
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		parts = append(parts, fmt.Sprintf("%s: %s", k, formatScalar(v)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func flowRef(r *Ref) string {
	var b strings.Builder
	fmt.Fprintf(&b, "{fileID: %d", int64(r.Handle))
	if r.GUID != "" {
		fmt.Fprintf(&b, ", guid: %s", r.GUID)
	}
	if r.Type != 0 {
		fmt.Fprintf(&b, ", type: %d", r.Type)
	}
	b.WriteString("}")
	return b.String()
}

func formatScalar(v *Value) string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		if v.Bool {
			return "1"
		}
		return "0"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return formatFloat(v.Float)
	case KindString:
		return formatString(v.Str)
	case KindRef:
		return flowRef(v.Ref)
	}
	return ""
}

// formatFloat keeps a decimal point or exponent in the output so the value
// reparses as a float, never an int.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

var reservedWords = map[string]bool{
	"true": true, "false": true, "null": true,
	"yes": true, "no": true, "on": true, "off": true,
	"True": true, "False": true,
}

func formatString(s string) string {
	if s == "" {
		return ""
	}
	// Strings with line breaks need double-quote escaping to survive a
	// round trip.
	if strings.ContainsAny(s, "\n\r") {
		return strconv.Quote(s)
	}
	if reservedWords[s] {
		return singleQuote(s)
	}
	if strings.ContainsRune("[{*&!|>'\"%@`", rune(s[0])) {
		return singleQuote(s)
	}
	if strings.ContainsAny(s, ":#") {
		return singleQuote(s)
	}
	if strings.HasPrefix(s, "- ") || strings.HasPrefix(s, "? ") {
		return singleQuote(s)
	}
	// Leading or trailing whitespace would be stripped on reparse.
	if strings.TrimSpace(s) != s {
		return singleQuote(s)
	}
	if looksNumeric(s) {
		return singleQuote(s)
	}
	return s
}

// looksNumeric reports whether an unquoted emission would reparse as a
// number. Digit runs with leading zeros stay plain; the parser keeps them as
// strings by the same rule.
func looksNumeric(s string) bool {
	stripped := strings.TrimPrefix(s, "-")
	if len(stripped) > 1 && stripped[0] == '0' && isDigits(stripped) {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func singleQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
