package telemetry

// Attribute names for run spans
const (
	AttrToolName      = "pdftools.tool.name"
	AttrRunID         = "pdftools.run.id"
	AttrPageCount     = "pdftools.document.page_count"
	AttrInputCount    = "pdftools.input.count"
	AttrArtifactCount = "pdftools.artifact.count"
	AttrArtifactBytes = "pdftools.artifact.bytes"
	AttrSuccess       = "pdftools.run.success"
	AttrErrorKind     = "pdftools.run.error_kind"
)

// SpanPrefix is prepended to the tool name to form the run span name
const SpanPrefix = "pdftools."
