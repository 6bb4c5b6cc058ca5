package nimbo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/nimbo/container"
	"github.com/arloliu/nimbo/dataset"
	"github.com/arloliu/nimbo/errs"
	"github.com/arloliu/nimbo/format"
	"github.com/arloliu/nimbo/index"
)

func TestCreateOpenRoundTrip(t *testing.T) {
	path := t.TempDir() + "/forecast.nbc"

	ds, err := Create(path, container.WithDefaultCompression(format.CompressionS2))
	require.NoError(t, err)

	_, err = ds.DefineDim("time", 3)
	require.NoError(t, err)
	_, err = ds.DefineDim("station", 2)
	require.NoError(t, err)

	temp, err := ds.DefineVar("temperature", format.TypeShort, []string{"time", "station"})
	require.NoError(t, err)
	require.NoError(t, temp.Attrs().Set(dataset.AttrScaleFactor, 0.01))
	require.NoError(t, temp.Attrs().Set(dataset.AttrAddOffset, 273.15))
	require.NoError(t, temp.Attrs().Set(dataset.AttrFillValue, int16(-32768)))

	when, err := ds.DefineVar("time", format.TypeDouble, []string{"time"})
	require.NoError(t, err)
	require.NoError(t, when.Attrs().Set(dataset.AttrUnits, "hours since 2024-03-01 00:00:00"))

	require.NoError(t, temp.SetAll(&dataset.Masked{
		Values:  []float64{285.5, 286.25, 0, 284.75, 290.1, 283.0},
		Missing: []bool{false, false, true, false, false, false},
	}))
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, when.SetAll([]time.Time{start, start.Add(6 * time.Hour), start.Add(12 * time.Hour)}))
	require.NoError(t, ds.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, reopened.Close()) }()

	temp2, err := reopened.Var("temperature")
	require.NoError(t, err)
	m, err := temp2.Get(index.All(), index.At(0))
	require.NoError(t, err)
	require.Equal(t, []int{3}, m.Shape)
	require.InDelta(t, 285.5, m.Values.([]float64)[0], 0.01)
	require.False(t, m.IsMissing(0))

	full, err := temp2.GetAll()
	require.NoError(t, err)
	require.True(t, full.IsMissing(2))

	when2, err := reopened.Var("time")
	require.NoError(t, err)
	tm, err := when2.Get(index.At(1))
	require.NoError(t, err)
	instant, present := tm.Scalar()
	require.True(t, present)
	require.Equal(t, start.Add(6*time.Hour), instant)
}

func TestFromBytes(t *testing.T) {
	store, err := container.Create("")
	require.NoError(t, err)
	ds := dataset.New(store)

	_, err = ds.DefineDim("x", 2)
	require.NoError(t, err)
	v, err := ds.DefineVar("v", format.TypeInt, []string{"x"})
	require.NoError(t, err)
	require.NoError(t, v.SetAll([]int32{5, 6}))

	image, err := store.Bytes()
	require.NoError(t, err)

	loaded, err := FromBytes(image)
	require.NoError(t, err)

	v2, err := loaded.Var("v")
	require.NoError(t, err)
	m, err := v2.GetAll()
	require.NoError(t, err)
	require.Equal(t, []int32{5, 6}, m.Values.([]int32))
}

func TestOpenMulti(t *testing.T) {
	dir := t.TempDir()

	writeMember := func(name string, rows int, base float64) string {
		path := dir + "/" + name
		ds, err := Create(path)
		require.NoError(t, err)

		_, err = ds.DefineDim("time", rows)
		require.NoError(t, err)
		v, err := ds.DefineVar("v", format.TypeDouble, []string{"time"})
		require.NoError(t, err)

		vals := make([]float64, rows)
		for i := range vals {
			vals[i] = base + float64(i)
		}
		require.NoError(t, v.SetAll(vals))
		require.NoError(t, ds.Close())

		return path
	}

	jan := writeMember("jan.nbc", 2, 0)
	feb := writeMember("feb.nbc", 3, 10)

	multi, err := OpenMulti("time", jan, feb)
	require.NoError(t, err)
	defer func() { require.NoError(t, multi.Close()) }()

	v, err := multi.Var("v")
	require.NoError(t, err)
	require.Equal(t, []int{5}, v.Shape())

	m, err := v.GetAll()
	require.NoError(t, err)
	require.Equal(t, []float64{0, 1, 10, 11, 12}, m.Values.([]float64))

	require.ErrorIs(t, v.SetAll(make([]float64, 5)), errs.ErrReadOnly)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(t.TempDir() + "/absent.nbc")
	require.Error(t, err)

	_, err = OpenMulti("time", t.TempDir()+"/absent.nbc")
	require.Error(t, err)
}
