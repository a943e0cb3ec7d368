package document

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"math"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// Digest is a lowercase hex BLAKE2b-256 digest of an object's canonical
// encoding. Two objects with equal content produce equal digests regardless
// of how their source files were formatted.
type Digest string

// ObjectDigest hashes an object's class, stripped flag, and content. The
// handle is deliberately excluded so remapped copies compare equal.
func ObjectDigest(o *Object) Digest {
	h, _ := blake2b.New256(nil)
	var cls [4]byte
	binary.BigEndian.PutUint32(cls[:], uint32(o.Class))
	h.Write(cls[:])
	if o.Stripped {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	hashValue(h, MapValue(o.Data))
	return Digest(hex.EncodeToString(h.Sum(nil)))
}

// ValueDigest hashes a single value tree.
func ValueDigest(v *Value) Digest {
	h, _ := blake2b.New256(nil)
	hashValue(h, v)
	return Digest(hex.EncodeToString(h.Sum(nil)))
}

// hashValue writes a canonical, prefix-free encoding of v. Every node is
// tagged with its kind so {} and [] and "" never collide.
func hashValue(w io.Writer, v *Value) {
	if v == nil {
		w.Write([]byte{byte(KindNull)})
		return
	}
	w.Write([]byte{byte(v.Kind)})
	switch v.Kind {
	case KindBool:
		if v.Bool {
			w.Write([]byte{1})
		} else {
			w.Write([]byte{0})
		}
	case KindInt:
		writeUint64(w, uint64(v.Int))
	case KindFloat:
		writeUint64(w, math.Float64bits(v.Float))
	case KindString:
		writeString(w, v.Str)
	case KindRef:
		writeUint64(w, uint64(v.Ref.Handle))
		writeString(w, v.Ref.GUID)
		writeUint64(w, uint64(v.Ref.Type))
	case KindSeq:
		writeUint64(w, uint64(len(v.Seq)))
		for _, item := range v.Seq {
			hashValue(w, item)
		}
	case KindMap:
		writeUint64(w, uint64(v.Map.Len()))
		for _, k := range v.Map.Keys() {
			writeString(w, k)
			child, _ := v.Map.Get(k)
			hashValue(w, child)
		}
	}
}

func writeUint64(w io.Writer, u uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], u)
	w.Write(b[:])
}

func writeString(w io.Writer, s string) {
	w.Write([]byte(strconv.Itoa(len(s))))
	w.Write([]byte{0})
	w.Write([]byte(s))
}
