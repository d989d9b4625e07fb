package surfcloud

import "errors"

// Error kinds. Packages in this module wrap these with fmt.Errorf("%w: ...")
// so callers can classify failures with errors.Is.
var (
	// ErrValidation is returned when a parameter is out of range. The
	// receiver's state is left unchanged.
	ErrValidation = errors.New("invalid parameter")
	// ErrResource is returned when a render target, model file or
	// output file cannot be allocated, read or written.
	ErrResource = errors.New("resource unavailable")
	// ErrFormat is returned for an unrecognized export format or a model
	// file that cannot be decoded.
	ErrFormat = errors.New("unsupported format")
)
