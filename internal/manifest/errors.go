package manifest

import "errors"

var (
	ErrManifestMissing = errors.New("manifest: missing")
	ErrManifestCorrupt = errors.New("manifest: corrupt")
)
