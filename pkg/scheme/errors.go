package scheme

import "fmt"

// MalformedTemplateError reports a template that cannot be compiled into a
// safe matcher. Offset is the byte position in the raw template where the
// problem was found, or -1 when the problem concerns the template as a whole.
type MalformedTemplateError struct {
	Template string
	Offset   int
	Reason   string
}

// Error implements the error interface.
func (e *MalformedTemplateError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("malformed template %q: %s", e.Template, e.Reason)
	}
	return fmt.Sprintf("malformed template %q at offset %d: %s", e.Template, e.Offset, e.Reason)
}

func malformed(template string, offset int, format string, args ...any) *MalformedTemplateError {
	return &MalformedTemplateError{
		Template: template,
		Offset:   offset,
		Reason:   fmt.Sprintf(format, args...),
	}
}
