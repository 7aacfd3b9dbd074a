package report

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"
)

// BundleFile is one receipt added to a receipt package
type BundleFile struct {
	Name string
	Data []byte
}

// BuildReceiptBundle zips the receipts with a manifest.txt listing every
// included file and every skipped reference.
func BuildReceiptBundle(title string, files []BundleFile, skipped []string, createdAt time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	var manifest strings.Builder
	fmt.Fprintf(&manifest, "%s\n", title)
	fmt.Fprintf(&manifest, "generated: %s\n", createdAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&manifest, "included: %d\n", len(files))

	used := make(map[string]int)
	for _, f := range files {
		name := uniqueName(used, path.Base(f.Name))
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: createdAt,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
		fmt.Fprintf(&manifest, "  %s (%d bytes)\n", name, len(f.Data))
	}

	if len(skipped) > 0 {
		fmt.Fprintf(&manifest, "skipped: %d\n", len(skipped))
		for _, ref := range skipped {
			fmt.Fprintf(&manifest, "  %s\n", ref)
		}
	}

	w, err := zw.Create("manifest.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to add manifest: %w", err)
	}
	if _, err := w.Write([]byte(manifest.String())); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize bundle: %w", err)
	}
	return buf.Bytes(), nil
}

func uniqueName(used map[string]int, name string) string {
	if name == "" || name == "." || name == "/" {
		name = "receipt"
	}
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
}
