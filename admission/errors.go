package admission

import "fmt"

// UnknownResourceError is returned when a task declares a resource class the
// manager has no semaphore for.
type UnknownResourceError struct {
	Resource string
}

func (e *UnknownResourceError) Error() string {
	return fmt.Sprintf("admission: unknown resource class %q", e.Resource)
}
