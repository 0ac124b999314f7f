package baseline

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrInvalidFileFormat reports a stream that violates the JPEG syntax.
	ErrInvalidFileFormat = errors.New("invalid jpeg format")
	// ErrUnsupportedFeature reports valid JPEG that this decoder does not handle.
	ErrUnsupportedFeature = errors.New("unsupported jpeg feature")
	// ErrArgument reports a caller supplied value out of range.
	ErrArgument = errors.New("invalid argument")
)

// truncated folds a short read into ErrInvalidFileFormat.
func truncated(what string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %s: %w", ErrInvalidFileFormat, what, err)
}
