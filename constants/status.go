package constants

// JobStatus is the canonical status for rows in extraction_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusPartial   JobStatus = "PARTIAL" // result returned but with an extraction error recorded
	JobStatusFailed    JobStatus = "FAILED"  // terminal failure, no result
)

// Stream and archive-entry conventions inside the proprietary containers.
const (
	PreviewTextStream = "PrvText"
	TextStreamMarker  = "Text"
	SummaryInfoStream = "\x05HwpSummaryInformation"

	SectionEntryPrefix = "Contents/section"
	HeaderEntry        = "Contents/header.xml"
	BinDataPrefix      = "BinData/"
)

// XML namespaces used by the archive format's content parts.
const (
	NSParagraph = "http://www.hancom.co.kr/hwpml/2011/paragraph"
	NSHead      = "http://www.hancom.co.kr/hwpml/2011/head"
)
