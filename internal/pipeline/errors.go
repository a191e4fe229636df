package pipeline

import (
	"errors"

	"github.com/MeKo-Tech/lipi/internal/script"
)

func isDecodeError(err error) bool { return errors.Is(err, ErrImageDecode) }

// IsFatal reports whether err is one of the run-aborting outcomes that
// retrying the same input cannot fix.
func IsFatal(err error) bool {
	return errors.Is(err, ErrImageDecode) ||
		errors.Is(err, ErrDetection) ||
		errors.Is(err, script.ErrUnsupportedLanguage)
}
