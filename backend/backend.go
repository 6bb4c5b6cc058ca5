// Package backend defines the storage contract between dataset bookkeeping
// and the engines that hold array data.
//
// A Store addresses multi-dimensional variables in storage order: dimension
// vectors list the fastest-varying dimension first, and flat payloads place
// elements of the first listed dimension adjacently. Callers that present a
// slowest-first view to their users (as the dataset package does) reverse
// their dimension vectors exactly once at this boundary.
//
// Element buffers cross the boundary as typed slices: []int8, []int16,
// []int32, []int64, []uint8, []uint16, []uint32, []uint64, []float32,
// []float64 or []string, matching the variable's declared type exactly.
// Conversions between user types and storage types happen above this
// interface.
package backend

import (
	"github.com/arloliu/nimbo/format"
)

// GlobalAttrs is the owner id addressing dataset-level attributes in
// PutAttr, GetAttr, AttrNames and DelAttr.
const GlobalAttrs = -1

// UnlimitedLen declares a record dimension in DefineDim. Record dimensions
// start empty and grow as writes address new records.
const UnlimitedLen = 0

// Status codes reported through errs.BackendError. The numbering follows the
// classic netCDF C library so that codes stay meaningful to tooling that
// already knows them.
const (
	StatusBadID       = -33 // not a valid id
	StatusPerm        = -37 // write attempted on read-only store
	StatusNotInDefine = -38 // definition attempted in data mode
	StatusInDefine    = -39 // transfer attempted in define mode
	StatusInvalCoords = -40 // index outside variable extent
	StatusNameInUse   = -42 // dimension or variable name already defined
	StatusNotAtt      = -43 // attribute not found
	StatusBadDim      = -46 // invalid dimension id or reference
	StatusEdge        = -47 // start+count exceeds variable extent
	StatusNotVar      = -49 // variable not found
	StatusStride      = -58 // illegal stride
	StatusRange       = -60 // value outside representable range
	StatusBadType     = -45 // invalid data type for this operation
)

// DimInfo describes one dimension of a store.
type DimInfo struct {
	// ID is the dimension's position in definition order.
	ID int

	// Name is the dimension's name, unique within the store.
	Name string

	// Len is the current length. For a record dimension this is the number
	// of records written so far.
	Len int

	// Unlimited marks the record dimension.
	Unlimited bool
}

// VarInfo describes one variable of a store.
type VarInfo struct {
	// ID is the variable's position in definition order.
	ID int

	// Name is the variable's name, unique within the store.
	Name string

	// Type is the element type of the variable's payload.
	Type format.DataType

	// DimIDs lists the variable's dimensions, fastest-varying first.
	// A scalar variable has no dimensions.
	DimIDs []int
}

// Store is the storage engine interface the dataset layer drives.
//
// A store is either in define mode, where the schema (dimensions, variables,
// attributes) may change, or in data mode, where element transfers are
// allowed. SetMode with the current mode is a no-op; definition calls in data
// mode and transfer calls in define mode fail with errs.ErrWrongMode.
//
// Implementations must be safe for concurrent readers once in data mode;
// schema changes require external coordination.
type Store interface {
	// Path returns the location this store was opened from, or the name it
	// was created with. Purely informational.
	Path() string

	// Mode returns the current mode.
	Mode() format.Mode

	// SetMode switches between define and data mode. Switching to the
	// current mode is a no-op.
	SetMode(mode format.Mode) error

	// DefineDim adds a dimension. A length of UnlimitedLen declares the
	// record dimension; at most one may exist. Fixed dimensions must have a
	// positive length.
	DefineDim(name string, length int) (DimInfo, error)

	// Dims lists all dimensions in definition order.
	Dims() []DimInfo

	// Dim returns the dimension with the given id.
	Dim(id int) (DimInfo, error)

	// DimByName returns the dimension with the given name.
	DimByName(name string) (DimInfo, error)

	// DefineVar adds a variable over the given dimension ids, listed
	// fastest-varying first. Storage is allocated immediately for the fixed
	// extent and pre-filled with the type's default fill value.
	DefineVar(name string, dataType format.DataType, dimIDs []int) (VarInfo, error)

	// Vars lists all variables in definition order.
	Vars() []VarInfo

	// Var returns the variable with the given id.
	Var(id int) (VarInfo, error)

	// VarByName returns the variable with the given name.
	VarByName(name string) (VarInfo, error)

	// PutAttr sets an attribute on a variable, or on the store itself when
	// owner is GlobalAttrs. Accepted value types are string, []string,
	// []byte, and scalars or slices of the fixed-width numeric types; plain
	// int is stored as int64. Re-putting an attribute replaces it.
	PutAttr(owner int, name string, value any) error

	// GetAttr returns an attribute value.
	GetAttr(owner int, name string) (any, error)

	// AttrNames lists attribute names of one owner in definition order.
	AttrNames(owner int) ([]string, error)

	// DelAttr removes an attribute.
	DelAttr(owner int, name string) error

	// ReadAll copies the variable's complete payload into dst, which must be
	// a typed slice of the variable's element type with exactly the
	// variable's current size.
	ReadAll(varID int, dst any) error

	// WriteAll copies src over the variable's complete payload. For record
	// variables the record count must match the current extent.
	WriteAll(varID int, src any) error

	// ReadSlab copies a strided hyperslab into dst. The start, count and
	// stride vectors are in storage order (fastest-varying first) and dst
	// must hold exactly the product of count elements.
	ReadSlab(varID int, start, count, stride []int, dst any) error

	// WriteSlab copies src into a strided hyperslab. Writes addressing
	// records beyond the current extent grow the record dimension; the gap,
	// if any, is pre-filled with the type's default fill value.
	WriteSlab(varID int, start, count, stride []int, src any) error

	// ReadPoint returns the single element at coord (storage order).
	ReadPoint(varID int, coord []int) (any, error)

	// WritePoint stores a single element at coord (storage order). Like
	// WriteSlab it may grow the record dimension.
	WritePoint(varID int, coord []int, value any) error

	// Sync persists the current state to the backing file, if any.
	Sync() error

	// Close syncs and releases the store. Close is idempotent.
	Close() error
}
