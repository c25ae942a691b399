// Package scanerr classifies the failures a duplicate scan can run into.
//
// File-level codes describe a single candidate that had to be excluded; the
// scan keeps going. Run-level codes abort the run before any scanning.
package scanerr

import (
	"errors"
	"fmt"
)

// Code identifies the kind of failure.
type Code string

const (
	// File-level, recoverable
	CodeOpen        Code = "OPEN_FAILED"
	CodeRead        Code = "READ_FAILED"
	CodeEncode      Code = "ENCODE_FAILED"
	CodeEnumeration Code = "ENUMERATION_FAILED"
	CodeReport      Code = "REPORT_FAILED"

	// Run-level, fatal
	CodeOutputExists  Code = "OUTPUT_EXISTS"
	CodeErrorLog      Code = "ERROR_LOG_FAILED"
	CodeConfigInvalid Code = "CONFIG_INVALID"
)

// Sentinels for errors.Is matching. Only the code is compared.
var (
	ErrOpen         = &Error{Code: CodeOpen}
	ErrRead         = &Error{Code: CodeRead}
	ErrEncode       = &Error{Code: CodeEncode}
	ErrEnumeration  = &Error{Code: CodeEnumeration}
	ErrReport       = &Error{Code: CodeReport}
	ErrOutputExists = &Error{Code: CodeOutputExists}
	ErrErrorLog     = &Error{Code: CodeErrorLog}
	ErrConfig       = &Error{Code: CodeConfigInvalid}
)

// Error is a failure tied to a path.
type Error struct {
	Code Code
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := describe(e.Code)
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Path, msg, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Path, msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	default:
		return msg
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates an error for path wrapping err.
func New(code Code, path string, err error) *Error {
	return &Error{Code: code, Path: path, Err: err}
}

func Open(path string, err error) *Error        { return New(CodeOpen, path, err) }
func Read(path string, err error) *Error        { return New(CodeRead, path, err) }
func Encode(path string, err error) *Error      { return New(CodeEncode, path, err) }
func Enumeration(path string, err error) *Error { return New(CodeEnumeration, path, err) }
func Report(path string, err error) *Error      { return New(CodeReport, path, err) }

// OutputExists is returned when the report destination is already present.
func OutputExists(path string) *Error {
	return New(CodeOutputExists, path, nil)
}

// CodeOf extracts the code from err, or "" when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// PathOf extracts the path from err, or "" when err carries none.
func PathOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Path
	}
	return ""
}

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	switch CodeOf(err) {
	case CodeOutputExists, CodeErrorLog, CodeConfigInvalid:
		return true
	default:
		return false
	}
}

func describe(code Code) string {
	switch code {
	case CodeOpen:
		return "could not open file"
	case CodeRead:
		return "could not read file"
	case CodeEncode:
		return "could not convert path to string"
	case CodeEnumeration:
		return "enumeration error"
	case CodeReport:
		return "could not write report"
	case CodeOutputExists:
		return "output file already exists"
	case CodeErrorLog:
		return "could not create error log"
	case CodeConfigInvalid:
		return "invalid configuration"
	default:
		return string(code)
	}
}
