package dataset

// Attributes is the named attribute view of one scope: a variable or the
// dataset's global scope. MultiDataset provides a third implementation that
// aggregates the scopes of its members.
//
// Get reports presence through its second return instead of an error, so
// optional attributes read as plain lookups:
//
//	if fill, ok := attrs.Get(dataset.AttrFillValue); ok {
//	    // variable declares a fill value
//	}
type Attributes interface {
	// Get returns the attribute value, or ok=false when the scope has no
	// attribute with this name. Slice values are detached copies.
	Get(name string) (value any, ok bool)

	// Set stores an attribute, replacing any previous value with the same
	// name. Accepted value types are string, []string, and scalars or slices
	// of the fixed-width numeric types; plain int is stored as int64.
	Set(name string, value any) error

	// Delete removes an attribute.
	Delete(name string) error

	// Names lists the attribute names in definition order.
	Names() []string
}

// storeAttrs serves one attribute scope of one backend store. Mutations
// assert define mode first; lookups work in either mode.
type storeAttrs struct {
	ds    *Dataset
	owner int
}

var _ Attributes = (*storeAttrs)(nil)

func (a *storeAttrs) Get(name string) (any, bool) {
	v, err := a.ds.store.GetAttr(a.owner, name)
	if err != nil {
		return nil, false
	}

	return v, true
}

func (a *storeAttrs) Set(name string, value any) error {
	if err := a.ds.forceDefine(); err != nil {
		return err
	}

	return a.ds.store.PutAttr(a.owner, name, value)
}

func (a *storeAttrs) Delete(name string) error {
	if err := a.ds.forceDefine(); err != nil {
		return err
	}

	return a.ds.store.DelAttr(a.owner, name)
}

func (a *storeAttrs) Names() []string {
	names, err := a.ds.store.AttrNames(a.owner)
	if err != nil {
		return nil
	}

	return names
}
