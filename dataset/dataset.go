package dataset

import (
	"fmt"

	"github.com/arloliu/nimbo/backend"
	"github.com/arloliu/nimbo/format"
	"github.com/arloliu/nimbo/internal/options"
)

// Dataset presents the variables of one storage engine in logical dimension
// order and owns the engine's define/data mode discipline. All handles
// derived from a Dataset (variables, attribute views) reference it and go
// through its mode helpers; none of them copies mode state.
type Dataset struct {
	store backend.Store
}

// New wraps an open storage engine. The dataset takes over the engine's mode
// discipline; callers should not switch modes on the store directly anymore.
func New(store backend.Store) *Dataset {
	return &Dataset{store: store}
}

// Path returns the location the underlying store was opened from or created
// with.
func (d *Dataset) Path() string {
	return d.store.Path()
}

// Store returns the underlying storage engine, for operations the dataset
// layer does not wrap (statistics, engine-specific tuning).
func (d *Dataset) Store() backend.Store {
	return d.store
}

// forceDefine switches the store to define mode. Re-asserting the current
// mode is a no-op in the store, so every metadata path calls this
// unconditionally before its store call.
func (d *Dataset) forceDefine() error {
	return d.store.SetMode(format.ModeDefine)
}

// forceData switches the store to data mode before a transfer.
func (d *Dataset) forceData() error {
	return d.store.SetMode(format.ModeData)
}

// DefineDim adds a dimension. A length of backend.UnlimitedLen declares the
// record dimension, which starts empty and grows as writes address new
// records; at most one may exist per dataset.
func (d *Dataset) DefineDim(name string, length int) (backend.DimInfo, error) {
	if err := d.forceDefine(); err != nil {
		return backend.DimInfo{}, err
	}

	return d.store.DefineDim(name, length)
}

// varConfig collects the DefineVar options.
type varConfig struct {
	compression    format.CompressionType
	hasCompression bool
}

// VarOption configures a variable at definition time.
type VarOption = options.Option[*varConfig]

// WithCompression selects the storage compression codec for the variable's
// payload. The storage engine must support per-variable compression and
// recognize the codec; DefineVar fails otherwise.
func WithCompression(compression format.CompressionType) VarOption {
	return options.NoError(func(c *varConfig) {
		c.compression = compression
		c.hasCompression = true
	})
}

// compressionSetter is the optional engine capability behind WithCompression.
type compressionSetter interface {
	SetVarCompression(varID int, compression format.CompressionType) error
}

// DefineVar adds a variable over the named dimensions, listed in logical
// order (slowest-varying first), and returns its CF view. A variable over no
// dimensions is a scalar.
func (d *Dataset) DefineVar(name string, dataType format.DataType, dims []string, opts ...VarOption) (*CFVariable, error) {
	var cfg varConfig
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	if err := d.forceDefine(); err != nil {
		return nil, err
	}

	// The store lists dimensions fastest-varying first.
	dimIDs := make([]int, len(dims))
	for i, dimName := range dims {
		info, err := d.store.DimByName(dimName)
		if err != nil {
			return nil, err
		}
		dimIDs[len(dims)-1-i] = info.ID
	}

	info, err := d.store.DefineVar(name, dataType, dimIDs)
	if err != nil {
		return nil, err
	}

	if cfg.hasCompression {
		setter, ok := d.store.(compressionSetter)
		if !ok {
			return nil, fmt.Errorf("store %T does not support per-variable compression", d.store)
		}
		if err := setter.SetVarCompression(info.ID, cfg.compression); err != nil {
			return nil, err
		}
	}

	return d.cfVar(info)
}

// Variable returns the raw strided view of a variable. No CF semantics are
// applied through it.
func (d *Dataset) Variable(name string) (*Variable, error) {
	info, err := d.store.VarByName(name)
	if err != nil {
		return nil, err
	}

	return newVariable(d, info)
}

// Var returns the CF view of a variable: reads decode fill masking, scale,
// offset and time axes; writes encode the exact inverse.
func (d *Dataset) Var(name string) (*CFVariable, error) {
	info, err := d.store.VarByName(name)
	if err != nil {
		return nil, err
	}

	return d.cfVar(info)
}

func (d *Dataset) cfVar(info backend.VarInfo) (*CFVariable, error) {
	raw, err := newVariable(d, info)
	if err != nil {
		return nil, err
	}

	return &CFVariable{
		raw:   raw,
		attrs: &storeAttrs{ds: d, owner: info.ID},
	}, nil
}

// Attrs returns the dataset's global attribute view.
func (d *Dataset) Attrs() Attributes {
	return &storeAttrs{ds: d, owner: backend.GlobalAttrs}
}

// Dimensions lists the dimensions in definition order.
func (d *Dataset) Dimensions() []backend.DimInfo {
	return d.store.Dims()
}

// Variables lists the variable names in definition order.
func (d *Dataset) Variables() []string {
	infos := d.store.Vars()
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}

	return names
}

// Dim returns the named dimension.
func (d *Dataset) Dim(name string) (backend.DimInfo, error) {
	return d.store.DimByName(name)
}

// Sync persists the store's current state to its backing file, if any.
func (d *Dataset) Sync() error {
	return d.store.Sync()
}

// Close syncs and releases the underlying store. Close is idempotent.
func (d *Dataset) Close() error {
	return d.store.Close()
}
