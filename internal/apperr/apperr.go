// Package apperr defines the error kinds shared across the memory service,
// so the HTTP adaptor can map a failure to a status code without inspecting
// driver-specific error types.
package apperr

import "fmt"

// Kind classifies an error for propagation and HTTP status mapping.
type Kind int

const (
	// KindStorage covers filesystem and MetaStore row-parse failures.
	KindStorage Kind = iota
	// KindJSON covers serialization failures.
	KindJSON
	// KindIO covers raw disk I/O failures.
	KindIO
	// KindEmbedding covers embedding model load or inference failures.
	KindEmbedding
	// KindVectorDB covers vector-store failures: dimension mismatch, missing column.
	KindVectorDB
	// KindConfig covers tokenizer load and path configuration failures.
	KindConfig
	// KindNotFound covers explicit misses.
	KindNotFound
	// KindInvalidInput covers enum parse failures and missing required fields.
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindStorage:
		return "storage"
	case KindJSON:
		return "json"
	case KindIO:
		return "io"
	case KindEmbedding:
		return "embedding"
	case KindVectorDB:
		return "vector-db"
	case KindConfig:
		return "config"
	case KindNotFound:
		return "not-found"
	case KindInvalidInput:
		return "invalid-input"
	default:
		return "unknown"
	}
}

// Error is the typed error carried through the memory service's layers.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Storage builds a storage-kind error.
func Storage(format string, args ...any) *Error { return newf(KindStorage, format, args...) }

// WrapStorage wraps err as a storage-kind error.
func WrapStorage(err error, format string, args ...any) *Error {
	return wrap(KindStorage, err, format, args...)
}

// JSONErr builds a json-kind error.
func JSONErr(format string, args ...any) *Error { return newf(KindJSON, format, args...) }

// WrapJSON wraps err as a json-kind error.
func WrapJSON(err error, format string, args ...any) *Error {
	return wrap(KindJSON, err, format, args...)
}

// IO builds an io-kind error.
func IO(format string, args ...any) *Error { return newf(KindIO, format, args...) }

// WrapIO wraps err as an io-kind error.
func WrapIO(err error, format string, args ...any) *Error {
	return wrap(KindIO, err, format, args...)
}

// Embedding builds an embedding-kind error.
func Embedding(format string, args ...any) *Error { return newf(KindEmbedding, format, args...) }

// WrapEmbedding wraps err as an embedding-kind error.
func WrapEmbedding(err error, format string, args ...any) *Error {
	return wrap(KindEmbedding, err, format, args...)
}

// VectorDB builds a vector-db-kind error.
func VectorDB(format string, args ...any) *Error { return newf(KindVectorDB, format, args...) }

// WrapVectorDB wraps err as a vector-db-kind error.
func WrapVectorDB(err error, format string, args ...any) *Error {
	return wrap(KindVectorDB, err, format, args...)
}

// Config builds a config-kind error.
func Config(format string, args ...any) *Error { return newf(KindConfig, format, args...) }

// WrapConfig wraps err as a config-kind error.
func WrapConfig(err error, format string, args ...any) *Error {
	return wrap(KindConfig, err, format, args...)
}

// NotFound builds a not-found-kind error.
func NotFound(format string, args ...any) *Error { return newf(KindNotFound, format, args...) }

// InvalidInput builds an invalid-input-kind error.
func InvalidInput(format string, args ...any) *Error { return newf(KindInvalidInput, format, args...) }

// KindOf extracts the Kind from err if it is (or wraps) an *Error.
// Unrecognized errors are treated as KindStorage, which maps to HTTP 500.
func KindOf(err error) Kind {
	var appErr *Error
	if asError(err, &appErr) {
		return appErr.Kind
	}
	return KindStorage
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
