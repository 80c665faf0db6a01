// Package bundle packages a validated catalog and its version into one
// immutable archive. Packaging is deterministic: the same catalog and
// version always produce byte-identical output, so published bundles can be
// compared across runs.
package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"gpu-catalog/catalog"
)

// VersionFile is the archive entry carrying the version string verbatim.
const VersionFile = "version"

// BundleName is the archive's object name under a channel prefix.
const BundleName = "bundle.zip"

// entryTime is the fixed modification time stamped on every archive entry.
// Zip cannot represent times before 1980.
var entryTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Package serializes the catalog into a zip archive: the version marker
// first, then one canonical CSV per provider in lexicographic order.
func Package(c *catalog.Catalog, version string) ([]byte, error) {
	if version == "" {
		return nil, fmt.Errorf("empty version")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if err := writeEntry(zw, VersionFile, func(w io.Writer) error {
		_, err := io.WriteString(w, version)
		return err
	}); err != nil {
		return nil, err
	}

	for _, provider := range c.Providers() {
		pc, _ := c.Get(provider)
		err := writeEntry(zw, provider+".csv", func(w io.Writer) error {
			return catalog.WriteCSV(w, pc.Records)
		})
		if err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize bundle: %w", err)
	}
	return buf.Bytes(), nil
}

func writeEntry(zw *zip.Writer, name string, fill func(io.Writer) error) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: entryTime,
	})
	if err != nil {
		return fmt.Errorf("create bundle entry %s: %w", name, err)
	}
	if err := fill(w); err != nil {
		return fmt.Errorf("write bundle entry %s: %w", name, err)
	}
	return nil
}

// Contents is an unpacked bundle.
type Contents struct {
	Version  string
	Catalogs []catalog.ProviderCatalog
}

// Read unpacks a bundle archive. Used by tests and the inspect command; the
// publisher never round-trips bundles.
func Read(data []byte) (*Contents, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}

	contents := &Contents{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open bundle entry %s: %w", f.Name, err)
		}

		switch {
		case f.Name == VersionFile:
			raw, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("read bundle entry %s: %w", f.Name, err)
			}
			contents.Version = string(raw)

		case strings.HasSuffix(f.Name, ".csv"):
			records, err := catalog.ReadCSV(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("read bundle entry %s: %w", f.Name, err)
			}
			contents.Catalogs = append(contents.Catalogs, catalog.ProviderCatalog{
				Provider: strings.TrimSuffix(f.Name, ".csv"),
				Records:  records,
			})

		default:
			rc.Close()
			return nil, fmt.Errorf("unexpected bundle entry %s", f.Name)
		}
	}

	if contents.Version == "" {
		return nil, fmt.Errorf("bundle has no version marker")
	}
	return contents, nil
}
