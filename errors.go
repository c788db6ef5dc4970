package nvshim

import "fmt"

// ErrMissingCollaborator is returned when the shim is constructed
// without one of its required external collaborators.
type ErrMissingCollaborator struct {
	Name string
}

func (e ErrMissingCollaborator) Error() string {
	return fmt.Sprintf("nvshim: required collaborator %q is not configured", e.Name)
}

// ErrUnknownIdentifier is returned when a function identifier is not
// present in the interface table.
type ErrUnknownIdentifier struct {
	ID FunctionID
}

func (e ErrUnknownIdentifier) Error() string {
	return fmt.Sprintf("unknown NvAPI interface identifier %s", e.ID)
}
