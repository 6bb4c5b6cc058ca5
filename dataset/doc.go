// Package dataset exposes the variables of a storage engine as logical
// multi-dimensional arrays and applies the CF (Climate and Forecast)
// metadata convention when values cross the API.
//
// A Dataset wraps a backend.Store and presents its variables in logical
// dimension order: dimension 0 is the slowest-varying. The store addresses
// dimensions the other way round (fastest-varying first), and the dataset
// layer reverses every dimension vector exactly once at that boundary.
//
// Two views exist per variable:
//
//   - Variable is the raw strided view. It transfers native elements
//     against normalized start/count/stride selections and applies no CF
//     semantics at all.
//   - CFVariable consults the variable's attributes on every access and runs
//     the CF pipeline: _FillValue masking, scale_factor/add_offset rescaling
//     and time-axis decoding on reads, and the exact inverse on writes.
//
// Reading a slice of a packed temperature variable:
//
//	ds, _ := dataset.New(store)
//	v, _ := ds.Var("temperature")
//	m, _ := v.Get(index.At(0), index.All(), index.Range(10, 19))
//	for i, val := range m.Values.([]float64) {
//	    if m.IsMissing(i) {
//	        continue
//	    }
//	    // val is unpacked: raw*scale_factor + add_offset
//	}
//
// The dataset owns the store's define/data mode discipline: metadata
// operations force define mode and data transfers force data mode, both
// idempotently, before the corresponding store call. One logical thread of
// control per open dataset is assumed; concurrent use of the same Dataset
// must be serialized by the caller.
//
// MultiDataset aggregates several read-only datasets along a shared
// dimension and serves the same CFVariable interface across member
// boundaries.
package dataset
