package decoder

import "github.com/student/mmdbcore/internal/mmdberrors"

// errorContext adapts a PathBuilder to the mmdberrors.ErrorContextTracker
// interface so a caller building a path top-down can hand it directly to
// WrapWithContext.
type errorContext struct {
	path *mmdberrors.PathBuilder
}

func (e *errorContext) BuildPath() string {
	if e.path == nil {
		return ""
	}
	return e.path.BuildPath()
}

// wrapError wraps an error with context information when an error occurs.
// Zero allocation on happy path - only allocates when error != nil.
func (d *Decoder) wrapError(err error) error {
	if err == nil {
		return nil
	}
	// Only wrap with context when an error actually occurs
	return mmdberrors.WrapWithContext(err, d.offset, nil)
}

// wrapErrorAtOffset wraps an error with context at a specific offset.
// Used when the error occurs at a different offset than the decoder's current position.
func (*Decoder) wrapErrorAtOffset(err error, offset uint) error {
	if err == nil {
		return nil
	}
	return mmdberrors.WrapWithContext(err, offset, nil)
}
