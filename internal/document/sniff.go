package document

import (
	"path/filepath"

	"github.com/doculab/extract/constants"
)

// Classify determines a document's format from its declared filename and
// leading bytes. Content signatures win over extensions, except that both
// zip-based formats share a signature and are disambiguated by extension.
// FormatUnsupported is terminal: it is a caller-input error, never a
// fallback trigger.
func Classify(filename string, leading []byte) constants.Format {
	declared := constants.MapExtToFormat(filepath.Ext(filename))

	if constants.HasOLESignature(leading) {
		return constants.FormatBinaryContainer
	}

	if constants.HasZipSignature(leading) {
		// A PDF shipped inside a zip wrapper is rare but declared by extension.
		if declared == constants.FormatPortableDoc {
			return constants.FormatPortableDoc
		}
		return constants.FormatArchiveXML
	}

	if declared == constants.FormatPortableDoc && constants.HasPDFSignature(leading) {
		return constants.FormatPortableDoc
	}

	return constants.FormatUnsupported
}
