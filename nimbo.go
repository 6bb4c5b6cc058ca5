// Package nimbo stores multi-dimensional scientific arrays in a
// self-describing container format and applies the CF (Climate and Forecast)
// metadata convention when values are read or written.
//
// A nimbo file holds named dimensions, typed variables laid out over those
// dimensions, and attributes on each variable and on the dataset itself.
// Four attributes carry CF semantics: _FillValue marks elements that hold no
// data, scale_factor and add_offset pack values into narrow integer types,
// and a units attribute of the form "days since 2000-01-01 00:00:00" makes a
// variable a time axis. The library decodes all four transparently on reads
// and encodes their exact inverse on writes.
//
// # Basic Usage
//
// Creating a dataset and writing a packed variable:
//
//	ds, _ := nimbo.Create("forecast.nbc")
//	ds.DefineDim("time", 0)  // record dimension, grows on write
//	ds.DefineDim("lat", 73)
//	ds.DefineDim("lon", 144)
//
//	temp, _ := ds.DefineVar("temperature", format.TypeShort, []string{"time", "lat", "lon"})
//	temp.Attrs().Set(dataset.AttrScaleFactor, 0.01)
//	temp.Attrs().Set(dataset.AttrAddOffset, 273.15)
//	temp.Attrs().Set(dataset.AttrFillValue, int16(-32768))
//
//	temp.Set(degreesKelvin, index.At(0), index.All(), index.All())
//	ds.Close()
//
// Reading it back, with fill masking and unpacking applied:
//
//	ds, _ := nimbo.Open("forecast.nbc")
//	temp, _ := ds.Var("temperature")
//	m, _ := temp.Get(index.At(0), index.All(), index.Range(0, 71))
//	for i, v := range m.Values.([]float64) {
//	    if m.IsMissing(i) {
//	        continue  // element held _FillValue
//	    }
//	    // v is raw*0.01 + 273.15
//	}
//
// Variables are indexed with one selector per dimension: index.At squeezes
// the dimension out of the result, index.All, index.Range and index.Strided
// keep it. See the index package for the selection model and the dataset
// package for the variable API.
//
// # Package Structure
//
// This package provides the top-level entry points. The underlying layers
// are usable directly: dataset exposes the CF pipeline over any
// backend.Store, container implements the bundled storage engine and file
// format, index and cftime hold the selection and time-axis models.
package nimbo

import (
	"github.com/arloliu/nimbo/container"
	"github.com/arloliu/nimbo/dataset"
)

// Create starts a new, empty dataset in define mode. Nothing touches the
// file system until Sync or Close; path may name a file that does not exist
// yet.
//
// Options configure the bundled container engine:
//   - container.WithLittleEndian() / container.WithBigEndian()
//   - container.WithDefaultCompression(format.CompressionNone|Deflate|Zstd|S2|LZ4)
//
// Example:
//
//	ds, err := nimbo.Create("output.nbc",
//	    container.WithDefaultCompression(format.CompressionZstd),
//	)
func Create(path string, opts ...container.Option) (*dataset.Dataset, error) {
	store, err := container.Create(path, opts...)
	if err != nil {
		return nil, err
	}

	return dataset.New(store), nil
}

// Open reads an existing dataset into memory. The dataset starts in data
// mode and is read-only unless container.WithAppend is given.
//
// Example:
//
//	ds, err := nimbo.Open("input.nbc", container.WithAppend())
func Open(path string, opts ...container.Option) (*dataset.Dataset, error) {
	store, err := container.Open(path, opts...)
	if err != nil {
		return nil, err
	}

	return dataset.New(store), nil
}

// FromBytes opens a dataset from an in-memory container image, read-only.
// Use it for datasets received over the network or embedded in a binary.
func FromBytes(data []byte, opts ...container.Option) (*dataset.Dataset, error) {
	store, err := container.FromBytes(data, opts...)
	if err != nil {
		return nil, err
	}

	return dataset.New(store), nil
}

// OpenMulti opens several dataset files and serves them as one read-only
// dataset, concatenated along the named dimension in the order given. A
// variable whose slowest dimension is aggDim is stitched across the files;
// other variables must agree in shape and are served from the first file.
//
// Closing the returned aggregate closes every member.
//
// Example:
//
//	ds, err := nimbo.OpenMulti("time", "jan.nbc", "feb.nbc", "mar.nbc")
func OpenMulti(aggDim string, paths ...string) (*dataset.MultiDataset, error) {
	members := make([]*dataset.Dataset, 0, len(paths))
	for _, path := range paths {
		member, err := Open(path)
		if err != nil {
			for _, open := range members {
				_ = open.Close()
			}

			return nil, err
		}
		members = append(members, member)
	}

	multi, err := dataset.NewMulti(aggDim, members...)
	if err != nil {
		for _, member := range members {
			_ = member.Close()
		}

		return nil, err
	}

	return multi, nil
}
