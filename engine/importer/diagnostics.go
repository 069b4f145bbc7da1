package importer

import "fmt"

// Severity ranks a diagnostic.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return "unknown"
}

// Stable diagnostic codes; tools key on these, so they never change.
const (
	CodeCanceled          = "import.canceled"
	CodeUnsupportedFormat = "import.unsupported_format"
	CodeInvalidDimensions = "import.invalid_dimensions"
	CodeDecodeFailed      = "import.decode_failed"
	CodeReadFailed        = "import.read_failed"
	CodeWriteFailed       = "import.write_failed"
	CodeEmitFailed        = "import.emit_failed"
)

// Diagnostic is one structured finding produced while importing an asset.
type Diagnostic struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Severity   Severity `json:"severity"`
	SourcePath string   `json:"source_path,omitempty"`
	ObjectPath string   `json:"object_path,omitempty"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Code, d.Message)
}

func errorDiag(code, sourcePath, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		Severity:   SeverityError,
		SourcePath: sourcePath,
	}
}
