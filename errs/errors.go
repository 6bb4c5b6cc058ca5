// Package errs defines the sentinel errors shared across nimbo packages.
//
// All errors are exported sentinel values so that callers can classify
// failures with errors.Is regardless of the wrapping context added by the
// layer that detected them:
//
//	_, err := v.Get(index.At(99))
//	if errors.Is(err, errs.ErrIndexOutOfRange) {
//	    // handle bad selection
//	}
//
// Storage-engine failures are reported as *BackendError values which carry
// the engine's numeric code and message; they match ErrBackend and, when the
// code is translatable, one of the domain sentinels as well.
package errs

import (
	"errors"
	"fmt"
)

// Index and shape validation errors. All of these are detected before any
// storage-engine call is issued; a selection that fails validation never
// results in a partial transfer.
var (
	// ErrUnsupportedIndex indicates an index element that is not one of the
	// supported selector kinds (point, full range, contiguous range, strided
	// range).
	ErrUnsupportedIndex = errors.New("unsupported index kind")

	// ErrInvalidStride indicates a strided range with a zero or negative step.
	ErrInvalidStride = errors.New("invalid stride")

	// ErrIndexOutOfRange indicates a selection bound outside [0, extent) for
	// its dimension.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrRankMismatch indicates an index tuple whose arity differs from the
	// variable's rank.
	ErrRankMismatch = errors.New("rank mismatch")

	// ErrShapeMismatch indicates a write whose value count differs from the
	// resolved sub-range element count.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidValueType indicates a read or write value that cannot be
	// converted to the variable's element type.
	ErrInvalidValueType = errors.New("invalid value type")
)

// Time-axis errors.
var (
	// ErrNotTimeUnits indicates a units string that does not follow the
	// "<unit> since <date>" time-axis pattern. Callers treating units as
	// optional time metadata should interpret this as "plain descriptive
	// string", not as a failure.
	ErrNotTimeUnits = errors.New("units string is not a time axis")

	// ErrUnknownTimeUnit indicates a units string that follows the time-axis
	// pattern but names a unit outside the supported set.
	ErrUnknownTimeUnit = errors.New("unrecognized time unit")

	// ErrBadReferenceTime indicates a units string that follows the time-axis
	// pattern but whose reference date-time cannot be parsed.
	ErrBadReferenceTime = errors.New("malformed reference date-time")
)

// CF pipeline errors.
var (
	// ErrNoFillValue indicates an attempt to store masked (missing) elements
	// into a variable that has no _FillValue attribute. Storing the mask
	// would silently lose data, so the write is rejected outright.
	ErrNoFillValue = errors.New("masked values require a _FillValue attribute")

	// ErrReadOnly indicates a mutating operation on a read-only handle, such
	// as a variable or attribute set reached through a multi-dataset
	// aggregate.
	ErrReadOnly = errors.New("dataset is read-only")
)

// Storage-engine errors. ErrBackend matches every *BackendError; the
// remaining sentinels match engine failures whose code translates to that
// domain kind.
var (
	// ErrBackend matches any storage-engine failure.
	ErrBackend = errors.New("backend failure")

	// ErrVarNotFound indicates a variable name unknown to the dataset.
	ErrVarNotFound = errors.New("variable not found")

	// ErrDimNotFound indicates a dimension name unknown to the dataset.
	ErrDimNotFound = errors.New("dimension not found")

	// ErrAttrNotFound indicates an attribute name unknown to its scope.
	ErrAttrNotFound = errors.New("attribute not found")

	// ErrAlreadyDefined indicates a dimension or variable name that is
	// already present in the dataset.
	ErrAlreadyDefined = errors.New("name already defined")

	// ErrWrongMode indicates a metadata operation issued in data mode or a
	// data operation issued in define mode.
	ErrWrongMode = errors.New("operation not permitted in current mode")

	// ErrInvalidDataType indicates an element type the storage engine does
	// not support.
	ErrInvalidDataType = errors.New("invalid data type")
)

// Container file-format errors.
var (
	// ErrInvalidMagicNumber indicates a file that does not start with the
	// container magic bytes.
	ErrInvalidMagicNumber = errors.New("invalid magic number")

	// ErrInvalidHeaderSize indicates a file too short to hold the fixed
	// container header.
	ErrInvalidHeaderSize = errors.New("invalid header size")

	// ErrUnsupportedVersion indicates a container format version this build
	// cannot read.
	ErrUnsupportedVersion = errors.New("unsupported format version")

	// ErrChecksumMismatch indicates a payload section whose stored xxHash64
	// digest does not match its bytes.
	ErrChecksumMismatch = errors.New("payload checksum mismatch")

	// ErrCorruptedFile indicates a structurally invalid container file
	// (truncated section, bad table entry, undecodable payload).
	ErrCorruptedFile = errors.New("corrupted container file")
)

// BackendError is a storage-engine failure carrying the engine's numeric
// error code and message. It matches ErrBackend always, and the translated
// domain sentinel (Kind) when the engine provided one.
type BackendError struct {
	// Code is the engine-specific error code.
	Code int
	// Kind is the domain sentinel the code translates to, or nil when the
	// code has no domain equivalent.
	Kind error
	// Message is the engine's human-readable description.
	Message string
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("backend failure (code %d): %s", e.Code, e.Message)
}

// Is reports whether this failure matches target. Every BackendError matches
// ErrBackend; a failure with a translated Kind matches that sentinel too.
func (e *BackendError) Is(target error) bool {
	if target == ErrBackend {
		return true
	}

	return e.Kind != nil && target == e.Kind
}

// Backend constructs a *BackendError with the given code, translated kind and
// formatted message.
func Backend(code int, kind error, format string, args ...any) *BackendError {
	return &BackendError{
		Code:    code,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}
