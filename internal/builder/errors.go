package builder

import (
	"fmt"
)

// ConfigurationError reports an invalid option, detected before any I/O.
type ConfigurationError struct {
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid option %s: %s", e.Option, e.Reason)
}

// PathTemplateError reports a chunk filename template whose names would
// change on every rebuild.
type PathTemplateError struct {
	Template    string
	Placeholder string
}

func (e *PathTemplateError) Error() string {
	return fmt.Sprintf("chunk filename %q uses %s, use [chunkhash] or [contenthash] instead", e.Template, e.Placeholder)
}

// UploadError wraps an uploader failure. It aborts the pass; files written
// by earlier stages are kept.
type UploadError struct {
	Stage string
	Files int
	Err   error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading %s (%d files): %v", e.Stage, e.Files, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
