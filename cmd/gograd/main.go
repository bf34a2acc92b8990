// Command gograd evaluates and differentiates expression graph documents.
//
//	gograd eval f.json --bindings at.yaml
//	gograd diff f.json --var x --eval
//	gograd graph f.yaml --to cbor > f.cbor
//	gograd check f.json g.json
//	gograd repl f.json
package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/spacemonkeygo/errors"

	"github.com/njchilds90/gograd"
)

func main() {
	var err error
	if isDebugMode() {
		err = Main(os.Args, os.Stdin, os.Stdout, os.Stderr)
	} else {
		err = guard(func() error { return Main(os.Args, os.Stdin, os.Stdout, os.Stderr) })
	}
	switch {
	case err == nil:
		return
	case Error.Contains(err):
		fmt.Fprintf(os.Stderr, "gograd: %s\n", err)
		os.Exit(int(exitCodeOf(err)))
	case gograd.Error.Contains(err):
		fmt.Fprintf(os.Stderr, "gograd: %s\n", err)
		os.Exit(int(EXIT_USER))
	}
	if isDebugMode() {
		panic(err)
	}
	logPath, saveErr := saveErrorReport(err)
	var saveMsg string
	if saveErr == nil {
		saveMsg = fmt.Sprintf("The full error was saved to %q.", logPath)
	} else {
		saveMsg = fmt.Sprintf("Saving the full error also failed (%q).", saveErr)
	}
	fmt.Fprintf(os.Stderr,
		"gograd was unable to complete your request!\n"+
			saveMsg+"\n"+
			"%s\n",
		err)
	os.Exit(int(EXIT_UNKNOWNPANIC))
}

// guard runs fn and turns a panic into a returned error.  Class errors
// keep their class; anything else becomes an errors.PanicError.
func guard(fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if ce, ok := r.(error); ok && (Error.Contains(ce) || gograd.Error.Contains(ce)) {
			err = ce
			return
		}
		err = errors.PanicError.New("%v", r)
	}()
	return fn()
}

func isDebugMode() bool {
	return len(os.Getenv("DEBUG")) != 0 || len(os.Getenv("GOGRAD_DEBUG")) != 0
}

func saveErrorReport(caught error) (string, error) {
	logFile, err := ioutil.TempFile(os.TempDir(), "gograd-error-report-")
	if err != nil {
		return "", err
	}
	defer logFile.Close()
	fmt.Fprintf(logFile, "gograd error report\n")
	fmt.Fprintf(logFile, "===================\n")
	fmt.Fprintf(logFile, "Date: %s\n\n", time.Now())
	fmt.Fprintf(logFile, "%+v\n", caught)
	return logFile.Name(), nil
}
