package resolve

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// NewGUID generates a fresh asset guid: 32 lowercase hex characters.
func NewGUID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// ReadMetaGUID extracts the guid from a .meta file.
func ReadMetaGUID(metaPath string) (string, error) {
	content, err := os.ReadFile(metaPath)
	if err != nil {
		return "", fmt.Errorf("read meta %s: %w", metaPath, err)
	}
	m := metaGUIDPattern.FindSubmatch(content)
	if m == nil {
		return "", fmt.Errorf("read meta %s: no guid line", metaPath)
	}
	return string(m[1]), nil
}

// WriteMeta creates a minimal .meta file for assetPath with the given guid
// and returns the meta path. An empty guid generates a new one.
func WriteMeta(assetPath, guid string) (string, error) {
	if guid == "" {
		guid = NewGUID()
	}
	content := fmt.Sprintf("fileFormatVersion: 2\nguid: %s\nDefaultImporter:\n  externalObjects: {}\n  userData: \n  assetBundleName: \n  assetBundleVariant: \n", guid)
	metaPath := assetPath + ".meta"
	if err := os.WriteFile(metaPath, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write meta %s: %w", metaPath, err)
	}
	return metaPath, nil
}
