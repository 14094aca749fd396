package tzcatalog

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// zoneDirs mirrors the places the time package searches for zone files.
var zoneDirs = []string{
	"/usr/share/zoneinfo/",
	"/usr/share/lib/zoneinfo/",
	"/usr/lib/locale/TZ/",
	"/etc/zoneinfo/",
}

// Entries that are valid TZif files but not zones a label should match.
var skippedZoneNames = map[string]bool{
	"Factory":    true,
	"localtime":  true,
	"posixrules": true,
}

// NewSystem builds a catalog from the zone names installed on this host.
// $ZONEINFO takes precedence, then the system directories, then the zip
// shipped with the Go toolchain.
func NewSystem() (*OrderedCatalog, error) {
	var sources []string
	if z := os.Getenv("ZONEINFO"); z != "" {
		sources = append(sources, z)
	}
	sources = append(sources, zoneDirs...)
	sources = append(sources, filepath.Join(runtime.GOROOT(), "lib", "time", "zoneinfo.zip"))

	for _, src := range sources {
		names, err := ListZoneNames(src)
		if err == nil && len(names) > 0 {
			return New(names, nil), nil
		}
	}

	return nil, fmt.Errorf("NewSystem: no zoneinfo source found in %v", sources)
}

// ListZoneNames returns the zone names found in a zoneinfo directory or zip file.
func ListZoneNames(source string) ([]string, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("ListZoneNames: %w", err)
	}
	if info.IsDir() {
		return listDir(source)
	}
	return listZip(source)
}

func listDir(root string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			// posix/ and right/ duplicate the main tree with different leap-second handling.
			if rel == "posix" || rel == "right" {
				return filepath.SkipDir
			}
			return nil
		}
		if skippedZoneNames[rel] || !isTZif(path) {
			return nil
		}
		names = append(names, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listDir %s: %w", root, err)
	}
	return names, nil
}

func listZip(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("listZip %s: %w", path, err)
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") || skippedZoneNames[f.Name] {
			continue
		}
		names = append(names, f.Name)
	}
	return names, nil
}

func isTZif(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	magic := make([]byte, 4)
	if _, err := f.Read(magic); err != nil {
		return false
	}
	return bytes.Equal(magic, []byte("TZif"))
}
