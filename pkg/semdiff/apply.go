package semdiff

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/TrueCyan/unityflow/pkg/document"
)

// Apply patches doc with a diff produced by Compare, returning a new
// document. Applying diff(a, b) to a yields a document that compares equal
// to b. Changes whose object keys do not exist in doc report an error
// rather than being dropped.
func Apply(doc *document.Document, d *Diff) (*document.Document, error) {
	out := doc.Clone()
	ks := buildKeySpace(out)

	// Removals run first so re-added objects can keep their handles and
	// the references between them stay intact.
	for _, oc := range d.Objects {
		if oc.Kind != Removed {
			continue
		}
		obj, ok := ks.byKey[oc.ObjectKey]
		if !ok {
			return nil, fmt.Errorf("apply: remove %s: no such object", oc.ObjectKey)
		}
		out.Remove(obj.Handle)
	}

	alloc := document.NewHandleAllocator(out)
	for _, oc := range d.Objects {
		if oc.Kind != Added {
			continue
		}
		clone := oc.Object.Clone()
		if alloc.Taken(clone.Handle) {
			clone.Handle = alloc.Next()
		} else {
			alloc.Reserve(clone.Handle)
		}
		out.Add(clone)
	}
	// Rebuild keys after structural changes.
	ks = buildKeySpace(out)

	for _, pc := range d.Properties {
		obj, ok := ks.byKey[pc.ObjectKey]
		if !ok {
			return nil, fmt.Errorf("apply: %s: no such object", pc.ObjectKey)
		}
		if err := applyProperty(obj, pc); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func applyProperty(obj *document.Object, pc PropertyChange) error {
	segments, modKey, err := splitPropertyPath(pc.PropertyPath)
	if err != nil {
		return fmt.Errorf("apply: %s.%s: %w", pc.ObjectKey, pc.PropertyPath, err)
	}

	if modKey != "" {
		seq, err := navigateSeq(obj.Data, segments)
		if err != nil {
			return fmt.Errorf("apply: %s.%s: %w", pc.ObjectKey, pc.PropertyPath, err)
		}
		applyModEntry(seq, modKey, pc)
		return nil
	}

	switch pc.Kind {
	case Removed:
		return removeAt(obj.Data, segments)
	default:
		return setAt(obj.Data, segments, pc.New.Clone())
	}
}

// pathSegment is one step: a map key, optionally followed by a sequence
// index.
type pathSegment struct {
	key     string
	index   int
	indexed bool
}

// splitPropertyPath parses the dotted paths Compare emits. A trailing
// "[target|propertyPath]" selector on a modification list is returned
// separately.
func splitPropertyPath(path string) ([]pathSegment, string, error) {
	// A selector key always contains '|' (or the '@' scalar marker), which
	// plain numeric indexes never do. The key may itself contain brackets,
	// so it runs to the end of the path.
	modKey := ""
	if i := strings.IndexByte(path, '['); i >= 0 {
		rest := path[i+1:]
		if strings.Contains(rest, "|") || strings.HasPrefix(rest, "@") {
			modKey = strings.TrimSuffix(rest, "]")
			path = path[:i]
		}
	}

	var segs []pathSegment
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, "", fmt.Errorf("empty path segment")
		}
		seg := pathSegment{key: part}
		if open := strings.IndexByte(part, '['); open >= 0 && strings.HasSuffix(part, "]") {
			idx, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil {
				return nil, "", fmt.Errorf("bad index in %q", part)
			}
			seg.key = part[:open]
			seg.index = idx
			seg.indexed = true
		}
		segs = append(segs, seg)
	}
	return segs, modKey, nil
}

// container returns the map holding the path's final segment.
func container(m *document.Map, segs []pathSegment) (*document.Map, pathSegment, error) {
	cur := document.MapValue(m)
	for i, seg := range segs {
		last := i == len(segs)-1
		if cur.Kind != document.KindMap {
			return nil, pathSegment{}, fmt.Errorf("segment %q: not a mapping", seg.key)
		}
		if last {
			return cur.Map, seg, nil
		}
		next, ok := cur.Map.Get(seg.key)
		if !ok {
			// Intermediate mappings are created on demand.
			next = document.MapValue(document.NewMap())
			cur.Map.Set(seg.key, next)
		}
		cur = next
		if seg.indexed {
			if cur.Kind != document.KindSeq || seg.index < 0 || seg.index >= len(cur.Seq) {
				return nil, pathSegment{}, fmt.Errorf("segment %q: index %d out of range", seg.key, seg.index)
			}
			cur = cur.Seq[seg.index]
		}
	}
	return nil, pathSegment{}, fmt.Errorf("empty path")
}

func setAt(m *document.Map, segs []pathSegment, v *document.Value) error {
	parent, last, err := container(m, segs)
	if err != nil {
		return err
	}
	if !last.indexed {
		parent.Set(last.key, v)
		return nil
	}
	seq, ok := parent.Get(last.key)
	if !ok || seq.Kind != document.KindSeq {
		parent.Set(last.key, document.SeqValue(v))
		return nil
	}
	switch {
	case last.index < len(seq.Seq):
		seq.Seq[last.index] = v
	case last.index == len(seq.Seq):
		seq.Seq = append(seq.Seq, v)
	default:
		return fmt.Errorf("segment %q: index %d out of range", last.key, last.index)
	}
	return nil
}

func removeAt(m *document.Map, segs []pathSegment) error {
	parent, last, err := container(m, segs)
	if err != nil {
		return err
	}
	if !last.indexed {
		parent.Delete(last.key)
		return nil
	}
	seq, ok := parent.Get(last.key)
	if !ok || seq.Kind != document.KindSeq || last.index >= len(seq.Seq) {
		return nil
	}
	seq.Seq = append(seq.Seq[:last.index], seq.Seq[last.index+1:]...)
	return nil
}

// navigateSeq walks to the sequence value the segments address.
func navigateSeq(m *document.Map, segs []pathSegment) (*document.Value, error) {
	cur := document.MapValue(m)
	for _, seg := range segs {
		if cur.Kind != document.KindMap {
			return nil, fmt.Errorf("segment %q: not a mapping", seg.key)
		}
		next, ok := cur.Map.Get(seg.key)
		if !ok {
			next = document.SeqValue(nil)
			cur.Map.Set(seg.key, next)
		}
		cur = next
		if seg.indexed {
			if cur.Kind != document.KindSeq || seg.index >= len(cur.Seq) {
				return nil, fmt.Errorf("segment %q: index %d out of range", seg.key, seg.index)
			}
			cur = cur.Seq[seg.index]
		}
	}
	if cur.Kind != document.KindSeq {
		return nil, fmt.Errorf("path does not address a sequence")
	}
	return cur, nil
}

// applyModEntry adds, replaces, or removes a keyed modification entry.
func applyModEntry(seq *document.Value, key string, pc PropertyChange) {
	idx := -1
	for i, entry := range seq.Seq {
		if modEntryKey(entry) == key {
			idx = i
			break
		}
	}
	switch pc.Kind {
	case Removed:
		if idx >= 0 {
			seq.Seq = append(seq.Seq[:idx], seq.Seq[idx+1:]...)
		}
	case Added:
		if idx < 0 {
			seq.Seq = append(seq.Seq, pc.New.Clone())
		} else {
			seq.Seq[idx] = pc.New.Clone()
		}
	case Modified:
		if idx >= 0 {
			seq.Seq[idx] = pc.New.Clone()
		} else {
			seq.Seq = append(seq.Seq, pc.New.Clone())
		}
	}
}
