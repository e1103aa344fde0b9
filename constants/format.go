package constants

import (
	"bytes"
	"strings"
)

// Format identifies a document container format.
type Format string

// Stable values (stored in job rows, returned by the API).
const (
	FormatBinaryContainer Format = "HWP"  // OLE compound binary container
	FormatArchiveXML      Format = "HWPX" // zip archive of XML parts
	FormatPortableDoc     Format = "PDF"
	FormatUnsupported     Format = ""
)

// Magic numbers for the supported containers.
var (
	OLESignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	ZipSignature = []byte{'P', 'K', 0x03, 0x04}
	PDFSignature = []byte("%PDF")
)

// AllowedExtensions holds the file extensions accepted for upload.
var AllowedExtensions = map[string]struct{}{
	"hwp":  {},
	"hwpx": {},
	"pdf":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a (normalized or raw) extension to its declared format.
func MapExtToFormat(ext string) Format {
	switch NormalizeExt(ext) {
	case "hwp":
		return FormatBinaryContainer
	case "hwpx":
		return FormatArchiveXML
	case "pdf":
		return FormatPortableDoc
	default:
		return FormatUnsupported
	}
}

// HasOLESignature reports whether the leading bytes open an OLE compound file.
func HasOLESignature(b []byte) bool {
	return bytes.HasPrefix(b, OLESignature)
}

// HasZipSignature reports whether the leading bytes open a zip local file header.
func HasZipSignature(b []byte) bool {
	return bytes.HasPrefix(b, ZipSignature)
}

// HasPDFSignature reports whether the leading bytes open a PDF document.
func HasPDFSignature(b []byte) bool {
	return bytes.HasPrefix(b, PDFSignature)
}
