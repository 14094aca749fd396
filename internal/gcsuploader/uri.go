package gcsuploader

import (
	"fmt"
	"path"
	"strings"
)

const gcsScheme = "gs://"

// IsGCSURI reports whether source names a GCS object.
func IsGCSURI(source string) bool {
	return strings.HasPrefix(source, gcsScheme)
}

// ParseGCSURI splits "gs://bucket/path/to/object" into bucket and object name.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !IsGCSURI(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, gcsScheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// BuildGCSURI is the inverse of ParseGCSURI.
func BuildGCSURI(bucket, object string) string {
	return gcsScheme + bucket + "/" + strings.TrimPrefix(object, "/")
}

// ExtractFilenameFromGCSURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/folder/file.csv" → "file.csv"
func ExtractFilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, gcsScheme)

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}
