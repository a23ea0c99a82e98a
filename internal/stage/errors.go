package stage

import "errors"

var (
	// ErrClassificationMissing means a classifier produced no value.
	ErrClassificationMissing = errors.New("classification missing")

	// ErrGenerationMissing means a generation stage produced no final output.
	ErrGenerationMissing = errors.New("generation missing")

	// ErrOutputSchema means a structured output did not conform to the
	// declared schema.
	ErrOutputSchema = errors.New("output does not match schema")

	// ErrInvalidStage reports a stage constructed with missing configuration.
	ErrInvalidStage = errors.New("invalid stage")
)

// IsMissingOutput reports whether err is one of the missing-output failures.
func IsMissingOutput(err error) bool {
	return errors.Is(err, ErrClassificationMissing) || errors.Is(err, ErrGenerationMissing)
}
