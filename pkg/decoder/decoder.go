// Package decoder reads raw GPR instrument dumps into the shared Radargram
// model. Two proprietary families are supported, each with its own decoder
// so format quirks stay isolated:
//
//   - Malå: an ASCII ".rad" header next to an ".rd3" (16-bit) or ".rd7"
//     (32-bit) little-endian trace block, with coordinates and timing in an
//     optional ".cor" sidecar.
//   - pulseEKKO: an ASCII ".hd" header next to a ".dt1" big-endian trace
//     block that interleaves a per-trace header with the samples.
//
// Decoders never modify source files and never return a Radargram that
// fails models.Validate.
package decoder

import (
	"path/filepath"
	"strings"

	"gprproc/internal/models"
)

// Decoder turns one instrument file (data or header path) into a Radargram.
type Decoder interface {
	Decode(path string) (*models.Radargram, error)
}

// Open decodes path with the decoder matching its extension. Either member
// of a header/data pair may be given; the sibling is derived by the format's
// naming convention.
func Open(path string) (*models.Radargram, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".rd3", ".rd7", ".rad":
		return Mala{}.Decode(path)
	case ".dt1", ".hd":
		return PulseEkko{}.Decode(path)
	}
	return nil, errf(UnsupportedVariant, path, "unknown extension %q", filepath.Ext(path))
}

// siblingWithExt swaps the extension of path, preserving the directory and
// stem. The replacement keeps the case convention of the original name so
// "PROFILE.RD3" pairs with "PROFILE.RAD".
func siblingWithExt(path, ext string) string {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	if upper := filepath.Ext(path); upper != "" && upper == strings.ToUpper(upper) {
		return stem + strings.ToUpper(ext)
	}
	return stem + ext
}
