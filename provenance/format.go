package provenance

import (
	"bytes"
	"sort"
	"strings"
)

const (
	FormatJPEG    = "image/jpeg"
	FormatSidecar = "application/c2pa"
)

var formatAliases = map[string]string{
	"image/jpeg":       FormatJPEG,
	"image/jpg":        FormatJPEG,
	"jpeg":             FormatJPEG,
	"jpg":              FormatJPEG,
	"application/c2pa": FormatSidecar,
	"c2pa":             FormatSidecar,
}

// NormalizeFormat maps a MIME type or file extension to its canonical
// MIME type.
func NormalizeFormat(format string) (string, bool) {
	f := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
	canonical, ok := formatAliases[f]
	return canonical, ok
}

// DetectFormat sniffs the format of data, returning "" when unknown.
func DetectFormat(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return FormatJPEG
	case bytes.HasPrefix(data, storeMagic):
		return FormatSidecar
	default:
		return ""
	}
}

func supportedExtensions() []string {
	var exts []string
	for alias := range formatAliases {
		if !strings.Contains(alias, "/") {
			exts = append(exts, alias)
		}
	}
	sort.Strings(exts)
	return exts
}
