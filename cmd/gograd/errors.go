package main

import (
	"github.com/spacemonkeygo/errors"
)

type ExitCode byte

const (
	EXIT_BADARGS      = ExitCode(1)
	EXIT_UNKNOWNPANIC = ExitCode(2) // same code as golang uses when the process dies naturally on an unhandled panic.
	EXIT_USER         = ExitCode(3) // grab bag for general user input errors
	EXIT_MISMATCH     = ExitCode(4) // `check` found two documents that evaluate differently
)

var exitCodeKey = errors.GenSym()

/*
	CLI errors are the last line: they should be formatted to be user-facing.
	main converts one into a short message and the exit code it carries,
	without a stack trace unless debug mode is on.

	Engine errors (shape mismatches, unbound variables, bad documents) are
	already user-facing and are reported the same way with EXIT_USER.
*/
var Error *errors.ErrorClass = errors.NewClass("CLIError")

// SetExitCode picks the process exit code for a CLIError.
func SetExitCode(code ExitCode) errors.ErrorOption {
	return errors.SetData(exitCodeKey, code)
}

func exitCodeOf(err error) ExitCode {
	if code, ok := errors.GetData(err, exitCodeKey).(ExitCode); ok {
		return code
	}
	return EXIT_USER
}
