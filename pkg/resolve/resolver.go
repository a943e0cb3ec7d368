package resolve

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/TrueCyan/unityflow/pkg/document"
)

// ErrNotFound reports a guid with no matching asset in the project.
var ErrNotFound = errors.New("guid not found")

// Resolver turns guids into project-relative asset paths, and loads the
// documents behind them.
type Resolver interface {
	// ResolvePath returns the asset path registered for guid.
	ResolvePath(guid string) (string, error)
	// ResolveDocument loads and parses the asset behind guid.
	ResolveDocument(guid string) (*document.Document, error)
}

var metaGUIDPattern = regexp.MustCompile(`(?m)^guid:\s*([a-f0-9]{32})\s*$`)

// documentCacheSize bounds how many parsed assets a DirResolver keeps live.
const documentCacheSize = 64

// DirResolver resolves guids by scanning a Unity project's .meta files.
// Parsed documents are held in a bounded LRU cache.
type DirResolver struct {
	root  string
	guids map[string]string // guid -> asset path relative to root
	paths map[string]string // asset path -> guid
	docs  *lru.Cache[string, *document.Document]
}

// NewDirResolver scans projectRoot's Assets directory (plus Packages when
// includePackages is set) and indexes every guid it finds. Unreadable meta
// files are skipped.
func NewDirResolver(projectRoot string, includePackages bool) (*DirResolver, error) {
	docs, err := lru.New[string, *document.Document](documentCacheSize)
	if err != nil {
		return nil, fmt.Errorf("new resolver: %w", err)
	}
	r := &DirResolver{
		root:  projectRoot,
		guids: make(map[string]string),
		paths: make(map[string]string),
		docs:  docs,
	}

	searchDirs := []string{filepath.Join(projectRoot, "Assets")}
	if includePackages {
		searchDirs = append(searchDirs, filepath.Join(projectRoot, "Packages"))
	}
	for _, dir := range searchDirs {
		if err := r.scan(dir); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *DirResolver) scan(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil
	}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".meta") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		m := metaGUIDPattern.FindSubmatch(content)
		if m == nil {
			return nil
		}
		guid := string(m[1])
		asset := strings.TrimSuffix(path, ".meta")
		if rel, relErr := filepath.Rel(r.root, asset); relErr == nil {
			asset = rel
		}
		r.guids[guid] = asset
		r.paths[asset] = guid
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", dir, err)
	}
	return nil
}

// ResolvePath returns the project-relative path registered for guid.
func (r *DirResolver) ResolvePath(guid string) (string, error) {
	path, ok := r.guids[guid]
	if !ok {
		return "", fmt.Errorf("resolve %s: %w", guid, ErrNotFound)
	}
	return path, nil
}

// GUIDForPath is the reverse lookup: the guid registered for a
// project-relative asset path.
func (r *DirResolver) GUIDForPath(path string) (string, bool) {
	guid, ok := r.paths[path]
	return guid, ok
}

// ResolveDocument loads the asset behind guid, caching parsed documents.
func (r *DirResolver) ResolveDocument(guid string) (*document.Document, error) {
	if doc, ok := r.docs.Get(guid); ok {
		return doc, nil
	}
	rel, err := r.ResolvePath(guid)
	if err != nil {
		return nil, err
	}
	doc, err := document.Load(filepath.Join(r.root, rel))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", guid, err)
	}
	r.docs.Add(guid, doc)
	return doc, nil
}

// GUIDs returns every indexed guid in sorted order.
func (r *DirResolver) GUIDs() []string {
	out := make([]string, 0, len(r.guids))
	for g := range r.guids {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Len reports how many guids the resolver indexed.
func (r *DirResolver) Len() int {
	return len(r.guids)
}
