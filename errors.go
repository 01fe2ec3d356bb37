// Package fatfs implements the on-disk geometry layer of a FAT (12/16/32)
// file system: parsing, validating, and synthesizing the boot sector and the
// BIOS Parameter Block embedded in it, plus every geometric quantity derived
// from them (cluster size, data region offset, cluster count, FAT size).
//
// Reading and writing FAT table entries, directory entries, and file contents
// are separate subsystems; they consume the values this package computes but
// are not implemented here.
package fatfs

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DriverError is the error type returned by every operation in this package.
// Errors can be matched against the sentinel Err* values with errors.Is.
type DriverError interface {
	error
	WithMessage(message string) DriverError
	Wrap(err error) DriverError
}

type baseFatfsError string

const rootError = baseFatfsError("")

var ErrFileSystemCorrupted = rootError.WithMessage("Structure needs cleaning")
var ErrGeometryMismatch = rootError.WithMessage("Total number of clusters and FAT type do not match")
var ErrInvalidArgument = rootError.WithMessage("Invalid argument")
var ErrInvalidBootSignature = rootError.WithMessage("Invalid boot sector signature")
var ErrIOFailed = rootError.WithMessage("Input/output error")
var ErrUnsupportedVersion = rootError.WithMessage("Unknown file system version")
var ErrVolumeTooSmall = rootError.WithMessage("Volume is too small")

func (e baseFatfsError) Error() string {
	return string(e)
}

func (e baseFatfsError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       message,
		originalError: e,
	}
}

func (e baseFatfsError) Wrap(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// -----------------------------------------------------------------------------

type customDriverError struct {
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e customDriverError) Error() string {
	return e.message
}

func (e customDriverError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customDriverError) Wrap(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

func (e customDriverError) Unwrap() error {
	return e.originalError
}
