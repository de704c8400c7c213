package pose

import "fmt"

// InputError reports a frame that could not be turned into a model input:
// an empty or unreadable image, or a template that does not match the
// engine's tensor contract. It is fatal only to that frame.
type InputError struct {
	Op  string
	Err error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input (%s): %v", e.Op, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }
