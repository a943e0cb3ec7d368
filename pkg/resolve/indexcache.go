package resolve

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// indexCacheName is the on-disk guid index cache, stored zstd-compressed
// next to the project's Library directory equivalents.
const indexCacheName = ".unityflow-guids.zst"

const indexCacheVersion = "unityflow-index-v1"

// SaveIndexCache writes the resolver's guid index to a compressed cache
// file under the project root. Rescanning a large project is the slow path;
// the cache makes repeat invocations cheap.
func (r *DirResolver) SaveIndexCache() error {
	var buf bytes.Buffer
	buf.WriteString(indexCacheVersion + "\n")

	guids := make([]string, 0, len(r.guids))
	for g := range r.guids {
		guids = append(guids, g)
	}
	sort.Strings(guids)
	for _, g := range guids {
		fmt.Fprintf(&buf, "%s\t%s\n", g, r.guids[g])
	}

	compressed, err := compressZstd(buf.Bytes())
	if err != nil {
		return fmt.Errorf("save index cache: %w", err)
	}
	path := filepath.Join(r.root, indexCacheName)
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return fmt.Errorf("save index cache: %w", err)
	}
	return nil
}

// LoadIndexCache replaces the resolver's guid index with a previously saved
// cache. Returns false without error when no usable cache exists.
func (r *DirResolver) LoadIndexCache() (bool, error) {
	raw, err := os.ReadFile(filepath.Join(r.root, indexCacheName))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load index cache: %w", err)
	}
	data, err := decompressZstd(raw)
	if err != nil {
		return false, fmt.Errorf("load index cache: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) == 0 || lines[0] != indexCacheVersion {
		return false, nil
	}

	guids := make(map[string]string)
	paths := make(map[string]string)
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		guid, path, ok := strings.Cut(line, "\t")
		if !ok {
			return false, fmt.Errorf("load index cache: malformed line %q", line)
		}
		guids[guid] = path
		paths[path] = guid
	}
	r.guids = guids
	r.paths = paths
	return true, nil
}

func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
