package channel

import "fmt"

// InvalidArgumentError is returned by New when a constructor argument
// is neither a positive buffer size nor a recognized transform shape.
type InvalidArgumentError struct {
	Arg    any
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("channel: invalid argument %v (%T): %s", e.Arg, e.Arg, e.Reason)
}
