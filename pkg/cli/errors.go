package cli

import "fmt"

// ArgError reports invalid command-line arguments.
type ArgError struct {
	Command string
	Message string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewArgError creates a new ArgError.
func NewArgError(command, message string) *ArgError {
	return &ArgError{
		Command: command,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode returns the process exit status for err: 0 for nil, 1 for
// anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
