package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies why a file failed.
type Kind int

const (
	// DecodeFailure: no encoding in the fallback list decodes the bytes.
	DecodeFailure Kind = iota + 1

	// ParseFailure: the table structure could not be recovered, or the file
	// type is not supported.
	ParseFailure

	// EmptyFile: zero data rows before or after header filtering.
	EmptyFile

	// SchemaDetectionFailure: more roles undetected than the schema allows.
	SchemaDetectionFailure

	// PersistenceError: the store failed for a reason other than a
	// duplicate key.
	PersistenceError

	// ReadFailure: the file could not be read from disk.
	ReadFailure
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrDecodeFailure          = errors.New("decode failure")
	ErrParseFailure           = errors.New("parse failure")
	ErrEmptyFile              = errors.New("empty file")
	ErrSchemaDetectionFailure = errors.New("schema detection failure")
	ErrPersistence            = errors.New("persistence error")
	ErrReadFailure            = errors.New("read failure")
)

var kindSentinels = map[Kind]error{
	DecodeFailure:          ErrDecodeFailure,
	ParseFailure:           ErrParseFailure,
	EmptyFile:              ErrEmptyFile,
	SchemaDetectionFailure: ErrSchemaDetectionFailure,
	PersistenceError:       ErrPersistence,
	ReadFailure:            ErrReadFailure,
}

func (k Kind) String() string {
	switch k {
	case DecodeFailure:
		return "DecodeFailure"
	case ParseFailure:
		return "ParseFailure"
	case EmptyFile:
		return "EmptyFile"
	case SchemaDetectionFailure:
		return "SchemaDetectionFailure"
	case PersistenceError:
		return "PersistenceError"
	case ReadFailure:
		return "ReadFailure"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a failure scoped to one file.
type Error struct {
	Kind Kind
	File string

	// State is the last state the file reached before failing.
	State State

	Err error
}

// Error returns the message shown to the user.
func (e *Error) Error() string {
	return fmt.Sprintf("Error processing %s: %v", e.File, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func newError(kind Kind, file string, state State, err error) *Error {
	return &Error{Kind: kind, File: file, State: state, Err: err}
}

// KindOf returns the kind of a pipeline error, or 0 if err is not one.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
