// Package container implements the single-file array store behind dataset
// handles. A file is a fixed 64-byte header followed by a dimension table,
// a global attribute block, a variable table and one compressed payload per
// variable. Payload integrity is checked with xxHash64 checksums computed
// over the compressed bytes.
//
// The whole store lives in memory; Sync and Close rewrite the backing file
// from scratch. That favors the write-once read-many life cycle of archived
// model output over in-place mutation, and keeps the format free of free
// lists and padding games.
//
// A store follows the classic two-mode discipline: dimensions, variables and
// their shapes change in define mode, element transfers run in data mode.
// Attributes may change in either mode since they never move payload bytes.
package container

import (
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/arloliu/nimbo/backend"
	"github.com/arloliu/nimbo/compress"
	"github.com/arloliu/nimbo/endian"
	"github.com/arloliu/nimbo/errs"
	"github.com/arloliu/nimbo/format"
	"github.com/arloliu/nimbo/internal/options"
	"github.com/arloliu/nimbo/internal/pool"
)

// variable is the in-memory state of one stored variable: its schema entry,
// payload codec, attribute block and flat element slice.
type variable struct {
	info        backend.VarInfo
	compression format.CompressionType
	attrs       *attrBlock
	data        any
}

// Store is an in-memory array store with an optional backing file. It
// implements backend.Store.
type Store struct {
	mu sync.RWMutex

	path     string
	mode     format.Mode
	readOnly bool
	closed   bool

	engine             endian.EndianEngine
	defaultCompression format.CompressionType

	dims     []backend.DimInfo
	dimNames map[string]int

	vars     []*variable
	varNames map[string]int

	globalAttrs *attrBlock

	// recordDim is the id of the record dimension, -1 when none is defined.
	recordDim  int
	numRecords int

	stats []VarStats
}

var _ backend.Store = (*Store)(nil)

func newStore(path string) *Store {
	return &Store{
		path:               path,
		engine:             endian.GetLittleEndianEngine(),
		defaultCompression: format.CompressionNone,
		dimNames:           make(map[string]int),
		varNames:           make(map[string]int),
		globalAttrs:        newAttrBlock(),
		recordDim:          -1,
	}
}

// Create starts a new, empty store in define mode. Nothing touches the file
// system until Sync or Close; path may name a file that does not exist yet.
func Create(path string, opts ...Option) (*Store, error) {
	s := newStore(path)
	s.mode = format.ModeDefine

	if err := options.Apply(s, opts...); err != nil {
		return nil, err
	}

	return s, nil
}

// Open reads a container file into memory. The store starts in data mode and
// is read-only unless WithAppend is given.
func Open(path string, opts ...Option) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}

	return fromBytes(path, data, opts)
}

// FromBytes decodes a container file image. The store has no backing file,
// so Sync is a no-op; use Bytes to re-serialize.
func FromBytes(data []byte, opts ...Option) (*Store, error) {
	return fromBytes("", data, opts)
}

func fromBytes(path string, data []byte, opts []Option) (*Store, error) {
	s := newStore(path)
	s.mode = format.ModeData
	s.readOnly = true

	if err := s.decode(data); err != nil {
		return nil, err
	}
	if err := options.Apply(s, opts...); err != nil {
		return nil, err
	}

	return s, nil
}

// Path returns the backing file path, or the empty string for byte-image
// stores.
func (s *Store) Path() string {
	return s.path
}

// Mode returns the current mode.
func (s *Store) Mode() format.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.mode
}

// SetMode switches between define and data mode. Switching to the current
// mode is a no-op. Read-only stores cannot enter define mode.
func (s *Store) SetMode(mode format.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOpen(); err != nil {
		return err
	}
	if mode != format.ModeDefine && mode != format.ModeData {
		return errs.Backend(backend.StatusBadType, errs.ErrWrongMode, "unknown mode %d", mode)
	}
	if mode == s.mode {
		return nil
	}
	if mode == format.ModeDefine && s.readOnly {
		return errs.Backend(backend.StatusPerm, errs.ErrReadOnly, "read-only store cannot enter define mode")
	}
	s.mode = mode

	return nil
}

func (s *Store) requireOpen() error {
	if s.closed {
		return errs.Backend(backend.StatusBadID, nil, "store is closed")
	}

	return nil
}

func (s *Store) requireWritable() error {
	if s.readOnly {
		return errs.Backend(backend.StatusPerm, errs.ErrReadOnly, "store opened read-only")
	}

	return nil
}

func (s *Store) requireDefineMode(op string) error {
	if s.mode != format.ModeDefine {
		return errs.Backend(backend.StatusNotInDefine, errs.ErrWrongMode, "%s requires define mode", op)
	}

	return nil
}

func (s *Store) requireDataMode(op string) error {
	if s.mode != format.ModeData {
		return errs.Backend(backend.StatusInDefine, errs.ErrWrongMode, "%s requires data mode", op)
	}

	return nil
}

func (s *Store) varAt(id int) (*variable, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	if id < 0 || id >= len(s.vars) {
		return nil, errs.Backend(backend.StatusNotVar, errs.ErrVarNotFound, "variable id %d", id)
	}

	return s.vars[id], nil
}

func cloneVarInfo(info backend.VarInfo) backend.VarInfo {
	info.DimIDs = append([]int(nil), info.DimIDs...)

	return info
}

// DefineDim adds a dimension. backend.UnlimitedLen declares the record
// dimension; at most one may exist.
func (s *Store) DefineDim(name string, length int) (backend.DimInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOpen(); err != nil {
		return backend.DimInfo{}, err
	}
	if err := s.requireWritable(); err != nil {
		return backend.DimInfo{}, err
	}
	if err := s.requireDefineMode("dimension definition"); err != nil {
		return backend.DimInfo{}, err
	}

	if name == "" {
		return backend.DimInfo{}, errs.Backend(backend.StatusBadDim, nil, "empty dimension name")
	}
	if _, exists := s.dimNames[name]; exists {
		return backend.DimInfo{}, errs.Backend(backend.StatusNameInUse, errs.ErrAlreadyDefined, "dimension %q", name)
	}

	unlimited := length == backend.UnlimitedLen
	switch {
	case unlimited && s.recordDim >= 0:
		return backend.DimInfo{}, errs.Backend(backend.StatusBadDim, errs.ErrAlreadyDefined,
			"record dimension %q already defined", s.dims[s.recordDim].Name)
	case !unlimited && length < 0:
		return backend.DimInfo{}, errs.Backend(backend.StatusBadDim, nil, "dimension %q length %d", name, length)
	}

	id := len(s.dims)
	info := backend.DimInfo{ID: id, Name: name, Len: length, Unlimited: unlimited}
	if unlimited {
		info.Len = s.numRecords
		s.recordDim = id
	}
	s.dims = append(s.dims, info)
	s.dimNames[name] = id

	return info, nil
}

// Dims lists all dimensions in definition order.
func (s *Store) Dims() []backend.DimInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]backend.DimInfo(nil), s.dims...)
}

// Dim returns the dimension with the given id.
func (s *Store) Dim(id int) (backend.DimInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireOpen(); err != nil {
		return backend.DimInfo{}, err
	}
	if id < 0 || id >= len(s.dims) {
		return backend.DimInfo{}, errs.Backend(backend.StatusBadDim, errs.ErrDimNotFound, "dimension id %d", id)
	}

	return s.dims[id], nil
}

// DimByName returns the dimension with the given name.
func (s *Store) DimByName(name string) (backend.DimInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireOpen(); err != nil {
		return backend.DimInfo{}, err
	}
	id, ok := s.dimNames[name]
	if !ok {
		return backend.DimInfo{}, errs.Backend(backend.StatusBadDim, errs.ErrDimNotFound, "dimension %q", name)
	}

	return s.dims[id], nil
}

// DefineVar adds a variable over the given dimension ids, fastest-varying
// first. Storage for the fixed extent is allocated immediately and
// pre-filled with the type's default fill value. A record dimension may only
// appear as the last (slowest-varying) entry.
func (s *Store) DefineVar(name string, dataType format.DataType, dimIDs []int) (backend.VarInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOpen(); err != nil {
		return backend.VarInfo{}, err
	}
	if err := s.requireWritable(); err != nil {
		return backend.VarInfo{}, err
	}
	if err := s.requireDefineMode("variable definition"); err != nil {
		return backend.VarInfo{}, err
	}

	if name == "" {
		return backend.VarInfo{}, errs.Backend(backend.StatusNotVar, nil, "empty variable name")
	}
	if !dataType.Valid() {
		return backend.VarInfo{}, errs.Backend(backend.StatusBadType, errs.ErrInvalidDataType,
			"variable %q type %d", name, dataType)
	}
	if _, exists := s.varNames[name]; exists {
		return backend.VarInfo{}, errs.Backend(backend.StatusNameInUse, errs.ErrAlreadyDefined, "variable %q", name)
	}
	for i, id := range dimIDs {
		if id < 0 || id >= len(s.dims) {
			return backend.VarInfo{}, errs.Backend(backend.StatusBadDim, errs.ErrDimNotFound,
				"dimension id %d of variable %q", id, name)
		}
		if s.dims[id].Unlimited && i != len(dimIDs)-1 {
			return backend.VarInfo{}, errs.Backend(backend.StatusBadDim, nil,
				"record dimension %q must be the slowest-varying dimension of %q", s.dims[id].Name, name)
		}
	}

	id := len(s.vars)
	v := &variable{
		info: backend.VarInfo{
			ID:     id,
			Name:   name,
			Type:   dataType,
			DimIDs: append([]int(nil), dimIDs...),
		},
		compression: s.defaultCompression,
		attrs:       newAttrBlock(),
	}
	v.data = kernelFor(dataType).alloc(numElements(s.varExtents(v)))

	s.vars = append(s.vars, v)
	s.varNames[name] = id

	return cloneVarInfo(v.info), nil
}

// Vars lists all variables in definition order.
func (s *Store) Vars() []backend.VarInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]backend.VarInfo, len(s.vars))
	for i, v := range s.vars {
		out[i] = cloneVarInfo(v.info)
	}

	return out
}

// Var returns the variable with the given id.
func (s *Store) Var(id int) (backend.VarInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, err := s.varAt(id)
	if err != nil {
		return backend.VarInfo{}, err
	}

	return cloneVarInfo(v.info), nil
}

// VarByName returns the variable with the given name.
func (s *Store) VarByName(name string) (backend.VarInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireOpen(); err != nil {
		return backend.VarInfo{}, err
	}
	id, ok := s.varNames[name]
	if !ok {
		return backend.VarInfo{}, errs.Backend(backend.StatusNotVar, errs.ErrVarNotFound, "variable %q", name)
	}

	return cloneVarInfo(s.vars[id].info), nil
}

// SetVarCompression overrides the payload codec of one variable. Takes
// effect on the next encode.
func (s *Store) SetVarCompression(varID int, compression format.CompressionType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.varAt(varID)
	if err != nil {
		return err
	}
	if err := s.requireWritable(); err != nil {
		return err
	}
	if _, err := compress.GetCodec(compression); err != nil {
		return fmt.Errorf("variable %q: %w", v.info.Name, err)
	}
	v.compression = compression

	return nil
}

func (s *Store) attrsFor(owner int) (*attrBlock, error) {
	if owner == backend.GlobalAttrs {
		if err := s.requireOpen(); err != nil {
			return nil, err
		}

		return s.globalAttrs, nil
	}

	v, err := s.varAt(owner)
	if err != nil {
		return nil, err
	}

	return v.attrs, nil
}

// PutAttr sets an attribute on a variable, or on the store itself when owner
// is backend.GlobalAttrs. Allowed in both modes.
func (s *Store) PutAttr(owner int, name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	block, err := s.attrsFor(owner)
	if err != nil {
		return err
	}
	if err := s.requireWritable(); err != nil {
		return err
	}

	return block.put(name, value)
}

// GetAttr returns an attribute value. Slice values are copies.
func (s *Store) GetAttr(owner int, name string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, err := s.attrsFor(owner)
	if err != nil {
		return nil, err
	}
	value, ok := block.get(name)
	if !ok {
		return nil, errs.Backend(backend.StatusNotAtt, errs.ErrAttrNotFound, "attribute %q", name)
	}

	return value, nil
}

// AttrNames lists one owner's attribute names in definition order.
func (s *Store) AttrNames(owner int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, err := s.attrsFor(owner)
	if err != nil {
		return nil, err
	}

	return block.names(), nil
}

// DelAttr removes an attribute.
func (s *Store) DelAttr(owner int, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	block, err := s.attrsFor(owner)
	if err != nil {
		return err
	}
	if err := s.requireWritable(); err != nil {
		return err
	}
	if !block.del(name) {
		return errs.Backend(backend.StatusNotAtt, errs.ErrAttrNotFound, "attribute %q", name)
	}

	return nil
}

// Stats reports per-variable compression outcomes from the most recent
// encode. Empty until Bytes, Sync or Close has serialized the store.
func (s *Store) Stats() []VarStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]VarStats(nil), s.stats...)
}

// Bytes serializes the store into a container file image.
func (s *Store) Bytes() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOpen(); err != nil {
		return nil, err
	}

	return s.encode()
}

// Sync rewrites the backing file from the current state. Stores without a
// backing file and read-only stores sync trivially.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOpen(); err != nil {
		return err
	}

	return s.syncLocked()
}

func (s *Store) syncLocked() error {
	if s.path == "" || s.readOnly {
		return nil
	}

	data, err := s.encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("sync container: %w", err)
	}

	return nil
}

// Close syncs and releases the store. Close is idempotent; every other
// operation fails once the store is closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	err := s.syncLocked()
	s.closed = true

	return err
}

// encode serializes header, tables and payloads. Payloads go first so the
// variable table can carry real sizes and checksums; their offsets are
// relative to the payload region, whose position follows from the table
// sizes alone.
func (s *Store) encode() ([]byte, error) {
	h := NewHeader()
	if s.engine == endian.GetBigEndianEngine() {
		h.Flags |= flagBigEndian
	}
	if s.recordDim >= 0 {
		h.Flags |= flagHasRecordDim
	}
	h.DimCount = uint32(len(s.dims))
	h.GlobalAttrCount = uint32(len(s.globalAttrs.entries))
	h.VarCount = uint32(len(s.vars))
	h.NumRecords = uint64(s.numRecords)

	blobs := make([][]byte, len(s.vars))
	descs := make([]payloadDesc, len(s.vars))
	stats := make([]VarStats, len(s.vars))
	payloadLen := uint64(0)
	for i, v := range s.vars {
		blob, desc, err := encodePayload(v, s.engine)
		if err != nil {
			return nil, err
		}
		desc.offset = payloadLen
		payloadLen += desc.compressedLen

		blobs[i] = blob
		descs[i] = desc
		stats[i] = VarStats{
			Name: v.info.Name,
			Stats: compress.CompressionStats{
				Algorithm:      v.compression,
				OriginalSize:   int64(desc.uncompressedLen),
				CompressedSize: int64(desc.compressedLen),
			},
		}
	}

	meta := pool.GetSectionBuffer()
	defer pool.PutSectionBuffer(meta)

	h.DimTableOffset = HeaderSize
	for _, d := range s.dims {
		appendDimEntry(meta, d)
	}

	h.GlobalAttrOffset = HeaderSize + uint64(meta.Len())
	appendAttrBlock(meta, s.globalAttrs)

	h.VarTableOffset = HeaderSize + uint64(meta.Len())
	for i, v := range s.vars {
		appendVarEntry(meta, v, descs[i])
	}

	h.PayloadOffset = HeaderSize + uint64(meta.Len())

	out := make([]byte, 0, HeaderSize+meta.Len()+int(payloadLen))
	out = append(out, h.Bytes()...)
	out = append(out, meta.Bytes()...)
	for _, blob := range blobs {
		out = append(out, blob...)
	}

	s.stats = stats

	return out, nil
}

// decode populates an empty store from a container file image.
func (s *Store) decode(data []byte) error {
	h, err := ParseHeader(data)
	if err != nil {
		return err
	}
	if h.NumRecords > math.MaxInt32 {
		return fmt.Errorf("%w: record count %d", errs.ErrCorruptedFile, h.NumRecords)
	}
	for _, off := range []uint64{h.DimTableOffset, h.GlobalAttrOffset, h.VarTableOffset, h.PayloadOffset} {
		if off < HeaderSize || off > uint64(len(data)) {
			return fmt.Errorf("%w: section offset %d outside file of %d bytes", errs.ErrCorruptedFile, off, len(data))
		}
	}

	s.engine = h.EndianEngine()
	s.numRecords = int(h.NumRecords)

	c := newCursor(data[h.DimTableOffset:])
	for i := 0; i < int(h.DimCount); i++ {
		info, err := parseDimEntry(c, i)
		if err != nil {
			return err
		}
		if _, exists := s.dimNames[info.Name]; exists {
			return fmt.Errorf("%w: duplicate dimension %q", errs.ErrCorruptedFile, info.Name)
		}
		if info.Unlimited {
			if s.recordDim >= 0 {
				return fmt.Errorf("%w: second record dimension %q", errs.ErrCorruptedFile, info.Name)
			}
			s.recordDim = i
			info.Len = s.numRecords
		}
		s.dims = append(s.dims, info)
		s.dimNames[info.Name] = i
	}
	if h.HasRecordDim() != (s.recordDim >= 0) {
		return fmt.Errorf("%w: record dimension flag disagrees with dimension table", errs.ErrCorruptedFile)
	}

	c = newCursor(data[h.GlobalAttrOffset:])
	if s.globalAttrs, err = parseAttrBlock(c); err != nil {
		return err
	}

	c = newCursor(data[h.VarTableOffset:])
	descs := make([]payloadDesc, int(h.VarCount))
	for i := 0; i < int(h.VarCount); i++ {
		v, desc, err := parseVarEntry(c, i)
		if err != nil {
			return err
		}
		if _, exists := s.varNames[v.info.Name]; exists {
			return fmt.Errorf("%w: duplicate variable %q", errs.ErrCorruptedFile, v.info.Name)
		}
		for j, id := range v.info.DimIDs {
			if id < 0 || id >= len(s.dims) {
				return fmt.Errorf("%w: variable %q references dimension %d", errs.ErrCorruptedFile, v.info.Name, id)
			}
			if s.dims[id].Unlimited && j != len(v.info.DimIDs)-1 {
				return fmt.Errorf("%w: record dimension is not the slowest-varying dimension of %q",
					errs.ErrCorruptedFile, v.info.Name)
			}
		}
		s.vars = append(s.vars, v)
		s.varNames[v.info.Name] = i
		descs[i] = desc
	}

	payload := data[h.PayloadOffset:]
	for i, v := range s.vars {
		desc := descs[i]
		if desc.compressedLen > uint64(len(payload)) || desc.offset > uint64(len(payload))-desc.compressedLen {
			return fmt.Errorf("%w: payload of %q outside payload region", errs.ErrCorruptedFile, v.info.Name)
		}
		blob := payload[desc.offset : desc.offset+desc.compressedLen]
		if err := decodePayload(v, blob, desc, s.engine, numElements(s.varExtents(v))); err != nil {
			return err
		}
	}

	return nil
}
