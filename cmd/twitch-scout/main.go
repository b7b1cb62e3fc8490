// twitch-scout finds Twitch streamers matching search criteria and
// exports their contact information.
package main

import (
	"errors"
	"os"
)

const (
	exitOK       = 0
	exitGeneral  = 1
	exitAuth     = 2
	exitCriteria = 3
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		var coded *exitError
		if errors.As(err, &coded) {
			os.Exit(coded.code)
		}
		os.Exit(exitGeneral)
	}
}

// exitError carries a process exit code through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}
