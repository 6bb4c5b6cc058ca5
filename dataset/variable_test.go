package dataset

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/nimbo/backend"
	"github.com/arloliu/nimbo/errs"
	"github.com/arloliu/nimbo/format"
	"github.com/arloliu/nimbo/index"
)

// defineCube defines a (2,3,4) double variable holding 0..23 in logical
// row-major order.
func defineCube(t *testing.T) (*Dataset, *Variable) {
	t.Helper()

	ds := newTestDataset(t)
	for _, dim := range []struct {
		name string
		len  int
	}{{"z", 2}, {"y", 3}, {"x", 4}} {
		_, err := ds.DefineDim(dim.name, dim.len)
		require.NoError(t, err)
	}
	_, err := ds.DefineVar("cube", format.TypeDouble, []string{"z", "y", "x"})
	require.NoError(t, err)

	v, err := ds.Variable("cube")
	require.NoError(t, err)

	vals := make([]float64, 24)
	for i := range vals {
		vals[i] = float64(i)
	}
	require.NoError(t, v.WriteAll(vals))

	return ds, v
}

func defineLine(t *testing.T, n int) *Variable {
	t.Helper()

	ds := newTestDataset(t)
	_, err := ds.DefineDim("x", n)
	require.NoError(t, err)
	_, err = ds.DefineVar("line", format.TypeDouble, []string{"x"})
	require.NoError(t, err)

	v, err := ds.Variable("line")
	require.NoError(t, err)

	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(i)
	}
	require.NoError(t, v.WriteAll(vals))

	return v
}

func TestVariableRead(t *testing.T) {
	t.Run("WholeVariable", func(t *testing.T) {
		_, v := defineCube(t)

		data, shape, err := v.Read(index.All(), index.All(), index.All())
		require.NoError(t, err)
		require.Equal(t, []int{2, 3, 4}, shape)
		require.Len(t, data.([]float64), 24)
		require.Equal(t, 0.0, data.([]float64)[0])
		require.Equal(t, 23.0, data.([]float64)[23])
	})

	t.Run("SqueezeOneDimension", func(t *testing.T) {
		_, v := defineCube(t)

		data, shape, err := v.Read(index.At(1), index.All(), index.All())
		require.NoError(t, err)
		require.Equal(t, []int{3, 4}, shape)

		want := make([]float64, 12)
		for i := range want {
			want[i] = float64(12 + i)
		}
		require.Equal(t, want, data.([]float64))
	})

	t.Run("SqueezeTwoDimensions", func(t *testing.T) {
		_, v := defineCube(t)

		data, shape, err := v.Read(index.At(1), index.At(2), index.All())
		require.NoError(t, err)
		require.Equal(t, []int{4}, shape)
		require.Equal(t, []float64{20, 21, 22, 23}, data.([]float64))
	})

	t.Run("FullyScalarIndexIsRankZero", func(t *testing.T) {
		_, v := defineCube(t)

		data, shape, err := v.Read(index.At(1), index.At(2), index.At(3))
		require.NoError(t, err)
		require.Empty(t, shape)
		require.Equal(t, []float64{23}, data.([]float64))
	})

	t.Run("StridedRange", func(t *testing.T) {
		v := defineLine(t, 10)

		data, shape, err := v.Read(index.Strided(0, 8, 2))
		require.NoError(t, err)
		require.Equal(t, []int{5}, shape)
		require.Equal(t, []float64{0, 2, 4, 6, 8}, data.([]float64))
	})

	t.Run("ContiguousRange", func(t *testing.T) {
		v := defineLine(t, 10)

		data, _, err := v.Read(index.Range(3, 6))
		require.NoError(t, err)
		require.Equal(t, []float64{3, 4, 5, 6}, data.([]float64))
	})

	t.Run("MixedSelectors", func(t *testing.T) {
		_, v := defineCube(t)

		// Rows 0 and 2 of plane 1, columns 1..3 stepping 2.
		data, shape, err := v.Read(index.At(1), index.Strided(0, 2, 2), index.Strided(1, 3, 2))
		require.NoError(t, err)
		require.Equal(t, []int{2, 2}, shape)
		require.Equal(t, []float64{13, 15, 21, 23}, data.([]float64))
	})

	t.Run("EmptySelection", func(t *testing.T) {
		v := defineLine(t, 10)

		data, shape, err := v.Read(index.Range(5, 2))
		require.NoError(t, err)
		require.Equal(t, []int{0}, shape)
		require.Empty(t, data.([]float64))
	})

	t.Run("DoubleReversalPreservesShape", func(t *testing.T) {
		_, v := defineCube(t)

		_, shape, err := v.Read(index.All(), index.Range(0, 1), index.Strided(0, 3, 3))
		require.NoError(t, err)
		require.Equal(t, []int{2, 2, 2}, shape)
	})
}

func TestVariableReadErrors(t *testing.T) {
	t.Run("RankMismatch", func(t *testing.T) {
		_, v := defineCube(t)

		_, _, err := v.Read(index.All())
		require.ErrorIs(t, err, errs.ErrRankMismatch)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		_, v := defineCube(t)

		_, _, err := v.Read(index.At(2), index.All(), index.All())
		require.ErrorIs(t, err, errs.ErrIndexOutOfRange)

		_, _, err = v.Read(index.All(), index.All(), index.Range(2, 4))
		require.ErrorIs(t, err, errs.ErrIndexOutOfRange)

		_, _, err = v.Read(index.All(), index.At(-1), index.All())
		require.ErrorIs(t, err, errs.ErrIndexOutOfRange)
	})

	t.Run("InvalidStride", func(t *testing.T) {
		_, v := defineCube(t)

		_, _, err := v.Read(index.All(), index.All(), index.Strided(0, 3, 0))
		require.ErrorIs(t, err, errs.ErrInvalidStride)

		_, _, err = v.Read(index.All(), index.All(), index.Strided(0, 3, -1))
		require.ErrorIs(t, err, errs.ErrInvalidStride)
	})

	t.Run("NilSelector", func(t *testing.T) {
		_, v := defineCube(t)

		_, _, err := v.Read(index.All(), nil, index.All())
		require.ErrorIs(t, err, errs.ErrUnsupportedIndex)
	})
}

func TestVariableWrite(t *testing.T) {
	t.Run("PointWrite", func(t *testing.T) {
		_, v := defineCube(t)

		require.NoError(t, v.Write(99.0, index.At(0), index.At(1), index.At(2)))

		data, _, err := v.Read(index.At(0), index.At(1), index.At(2))
		require.NoError(t, err)
		require.Equal(t, []float64{99}, data.([]float64))

		// Neighbours are untouched.
		data, _, err = v.Read(index.At(0), index.At(1), index.At(3))
		require.NoError(t, err)
		require.Equal(t, []float64{7}, data.([]float64))
	})

	t.Run("StridedWrite", func(t *testing.T) {
		v := defineLine(t, 10)

		require.NoError(t, v.Write([]float64{100, 102, 104}, index.Strided(0, 4, 2)))

		data, err := v.ReadAll()
		require.NoError(t, err)
		require.Equal(t, []float64{100, 1, 102, 3, 104, 5, 6, 7, 8, 9}, data.([]float64))
	})

	t.Run("ScalarBroadcast", func(t *testing.T) {
		v := defineLine(t, 10)

		require.NoError(t, v.Write(-1.0, index.Range(2, 5)))

		data, err := v.ReadAll()
		require.NoError(t, err)
		require.Equal(t, []float64{0, 1, -1, -1, -1, -1, 6, 7, 8, 9}, data.([]float64))
	})

	t.Run("ShapeMismatch", func(t *testing.T) {
		v := defineLine(t, 10)

		err := v.Write([]float64{1, 2, 3}, index.Range(0, 3))
		require.ErrorIs(t, err, errs.ErrShapeMismatch)

		// Validation precedes the transfer: nothing was written.
		data, err := v.ReadAll()
		require.NoError(t, err)
		require.Equal(t, 0.0, data.([]float64)[0])
	})

	t.Run("UnsupportedValueType", func(t *testing.T) {
		v := defineLine(t, 10)

		err := v.Write("text", index.At(0))
		require.ErrorIs(t, err, errs.ErrInvalidValueType)
	})

	t.Run("NativeSliceWrite", func(t *testing.T) {
		ds := newTestDataset(t)
		_, err := ds.DefineDim("x", 3)
		require.NoError(t, err)
		_, err = ds.DefineVar("v", format.TypeShort, []string{"x"})
		require.NoError(t, err)

		v, err := ds.Variable("v")
		require.NoError(t, err)
		require.NoError(t, v.WriteAll([]int16{7, 8, 9}))

		data, err := v.ReadAll()
		require.NoError(t, err)
		require.Equal(t, []int16{7, 8, 9}, data.([]int16))
	})
}

func TestScalarVariable(t *testing.T) {
	ds := newTestDataset(t)
	_, err := ds.DefineVar("answer", format.TypeInt, nil)
	require.NoError(t, err)

	v, err := ds.Variable("answer")
	require.NoError(t, err)
	require.Equal(t, 0, v.Rank())
	require.Equal(t, 1, v.Size())

	require.NoError(t, v.Write(int32(42)))

	data, shape, err := v.Read()
	require.NoError(t, err)
	require.Empty(t, shape)
	require.Equal(t, []int32{42}, data.([]int32))
}

func TestRecordVariable(t *testing.T) {
	newRecordVar := func(t *testing.T) *Variable {
		t.Helper()

		ds := newTestDataset(t)
		_, err := ds.DefineDim("time", backend.UnlimitedLen)
		require.NoError(t, err)
		_, err = ds.DefineDim("x", 3)
		require.NoError(t, err)
		_, err = ds.DefineVar("obs", format.TypeDouble, []string{"time", "x"})
		require.NoError(t, err)

		v, err := ds.Variable("obs")
		require.NoError(t, err)

		return v
	}

	t.Run("GrowsOnExplicitBound", func(t *testing.T) {
		v := newRecordVar(t)
		require.Equal(t, []int{0, 3}, v.Shape())

		require.NoError(t, v.Write([]float64{1, 2, 3}, index.At(2), index.All()))
		require.Equal(t, []int{3, 3}, v.Shape())

		// Skipped records hold the default fill.
		data, _, err := v.Read(index.At(0), index.All())
		require.NoError(t, err)
		require.Equal(t, []float64{format.FillDouble, format.FillDouble, format.FillDouble}, data.([]float64))

		data, _, err = v.Read(index.At(2), index.All())
		require.NoError(t, err)
		require.Equal(t, []float64{1, 2, 3}, data.([]float64))
	})

	t.Run("ReadNeverGrows", func(t *testing.T) {
		v := newRecordVar(t)

		_, _, err := v.Read(index.At(0), index.All())
		require.ErrorIs(t, err, errs.ErrIndexOutOfRange)
		require.Equal(t, []int{0, 3}, v.Shape())
	})

	t.Run("FixedDimensionStillBounded", func(t *testing.T) {
		v := newRecordVar(t)

		err := v.Write(1.0, index.At(0), index.At(5))
		require.ErrorIs(t, err, errs.ErrIndexOutOfRange)
	})
}
