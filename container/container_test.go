package container

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/nimbo/backend"
	"github.com/arloliu/nimbo/errs"
	"github.com/arloliu/nimbo/format"
)

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()

	var be *errs.BackendError
	require.ErrorAs(t, err, &be)
	require.Equal(t, status, be.Code)
}

func TestCreate(t *testing.T) {
	t.Run("StartsInDefineMode", func(t *testing.T) {
		s, err := Create("weather.nbc")
		require.NoError(t, err)
		require.Equal(t, format.ModeDefine, s.Mode())
		require.Equal(t, "weather.nbc", s.Path())
		require.Empty(t, s.Dims())
		require.Empty(t, s.Vars())
	})

	t.Run("InvalidDefaultCompression", func(t *testing.T) {
		_, err := Create("x.nbc", WithDefaultCompression(format.CompressionType(0x99)))
		require.Error(t, err)
	})
}

func TestDefineDim(t *testing.T) {
	t.Run("FixedDimension", func(t *testing.T) {
		s, err := Create("")
		require.NoError(t, err)

		info, err := s.DefineDim("lat", 73)
		require.NoError(t, err)
		require.Equal(t, 0, info.ID)
		require.Equal(t, "lat", info.Name)
		require.Equal(t, 73, info.Len)
		require.False(t, info.Unlimited)

		byName, err := s.DimByName("lat")
		require.NoError(t, err)
		require.Equal(t, info, byName)

		byID, err := s.Dim(0)
		require.NoError(t, err)
		require.Equal(t, info, byID)
	})

	t.Run("RecordDimension", func(t *testing.T) {
		s, err := Create("")
		require.NoError(t, err)

		info, err := s.DefineDim("time", backend.UnlimitedLen)
		require.NoError(t, err)
		require.True(t, info.Unlimited)
		require.Equal(t, 0, info.Len)
	})

	t.Run("SecondRecordDimensionFails", func(t *testing.T) {
		s, err := Create("")
		require.NoError(t, err)

		_, err = s.DefineDim("time", backend.UnlimitedLen)
		require.NoError(t, err)

		_, err = s.DefineDim("obs", backend.UnlimitedLen)
		require.ErrorIs(t, err, errs.ErrAlreadyDefined)
		requireStatus(t, err, backend.StatusBadDim)
	})

	t.Run("DuplicateNameFails", func(t *testing.T) {
		s, err := Create("")
		require.NoError(t, err)

		_, err = s.DefineDim("lat", 73)
		require.NoError(t, err)

		_, err = s.DefineDim("lat", 10)
		require.ErrorIs(t, err, errs.ErrAlreadyDefined)
		requireStatus(t, err, backend.StatusNameInUse)
	})

	t.Run("NegativeLengthFails", func(t *testing.T) {
		s, err := Create("")
		require.NoError(t, err)

		_, err = s.DefineDim("lat", -1)
		requireStatus(t, err, backend.StatusBadDim)
	})

	t.Run("EmptyNameFails", func(t *testing.T) {
		s, err := Create("")
		require.NoError(t, err)

		_, err = s.DefineDim("", 4)
		requireStatus(t, err, backend.StatusBadDim)
	})

	t.Run("RejectedInDataMode", func(t *testing.T) {
		s, err := Create("")
		require.NoError(t, err)
		require.NoError(t, s.SetMode(format.ModeData))

		_, err = s.DefineDim("lat", 73)
		require.ErrorIs(t, err, errs.ErrWrongMode)
		requireStatus(t, err, backend.StatusNotInDefine)
	})
}

func TestDefineVar(t *testing.T) {
	newSchema := func(t *testing.T) (*Store, backend.DimInfo, backend.DimInfo, backend.DimInfo) {
		t.Helper()

		s, err := Create("")
		require.NoError(t, err)
		lon, err := s.DefineDim("lon", 4)
		require.NoError(t, err)
		lat, err := s.DefineDim("lat", 3)
		require.NoError(t, err)
		tm, err := s.DefineDim("time", backend.UnlimitedLen)
		require.NoError(t, err)

		return s, lon, lat, tm
	}

	t.Run("FixedVariable", func(t *testing.T) {
		s, lon, lat, _ := newSchema(t)

		info, err := s.DefineVar("sst", format.TypeFloat, []int{lon.ID, lat.ID})
		require.NoError(t, err)
		require.Equal(t, 0, info.ID)
		require.Equal(t, format.TypeFloat, info.Type)
		require.Equal(t, []int{lon.ID, lat.ID}, info.DimIDs)

		// Fresh storage is pre-filled with the type's default fill value.
		require.NoError(t, s.SetMode(format.ModeData))
		dst := make([]float32, 12)
		require.NoError(t, s.ReadAll(info.ID, dst))
		for _, v := range dst {
			require.Equal(t, format.FillFloat, v)
		}
	})

	t.Run("ScalarVariable", func(t *testing.T) {
		s, _, _, _ := newSchema(t)

		info, err := s.DefineVar("run_id", format.TypeInt64, nil)
		require.NoError(t, err)
		require.Empty(t, info.DimIDs)

		require.NoError(t, s.SetMode(format.ModeData))
		dst := make([]int64, 1)
		require.NoError(t, s.ReadAll(info.ID, dst))
		require.Equal(t, format.FillInt64, dst[0])
	})

	t.Run("RecordVariable", func(t *testing.T) {
		s, lon, _, tm := newSchema(t)

		info, err := s.DefineVar("wind", format.TypeDouble, []int{lon.ID, tm.ID})
		require.NoError(t, err)

		// No records yet, so the variable is empty.
		require.NoError(t, s.SetMode(format.ModeData))
		require.NoError(t, s.ReadAll(info.ID, []float64{}))
	})

	t.Run("RecordDimMustBeSlowest", func(t *testing.T) {
		s, lon, _, tm := newSchema(t)

		_, err := s.DefineVar("wind", format.TypeDouble, []int{tm.ID, lon.ID})
		requireStatus(t, err, backend.StatusBadDim)
	})

	t.Run("UnknownDimensionFails", func(t *testing.T) {
		s, _, _, _ := newSchema(t)

		_, err := s.DefineVar("sst", format.TypeFloat, []int{99})
		require.ErrorIs(t, err, errs.ErrDimNotFound)
	})

	t.Run("DuplicateNameFails", func(t *testing.T) {
		s, lon, _, _ := newSchema(t)

		_, err := s.DefineVar("sst", format.TypeFloat, []int{lon.ID})
		require.NoError(t, err)
		_, err = s.DefineVar("sst", format.TypeDouble, []int{lon.ID})
		require.ErrorIs(t, err, errs.ErrAlreadyDefined)
		requireStatus(t, err, backend.StatusNameInUse)
	})

	t.Run("InvalidTypeFails", func(t *testing.T) {
		s, lon, _, _ := newSchema(t)

		_, err := s.DefineVar("sst", format.DataType(0), []int{lon.ID})
		require.ErrorIs(t, err, errs.ErrInvalidDataType)
		requireStatus(t, err, backend.StatusBadType)
	})

	t.Run("RejectedInDataMode", func(t *testing.T) {
		s, lon, _, _ := newSchema(t)
		require.NoError(t, s.SetMode(format.ModeData))

		_, err := s.DefineVar("sst", format.TypeFloat, []int{lon.ID})
		require.ErrorIs(t, err, errs.ErrWrongMode)
	})

	t.Run("InfoIsDetached", func(t *testing.T) {
		s, lon, lat, _ := newSchema(t)

		info, err := s.DefineVar("sst", format.TypeFloat, []int{lon.ID, lat.ID})
		require.NoError(t, err)
		info.DimIDs[0] = 42

		fresh, err := s.Var(info.ID)
		require.NoError(t, err)
		require.Equal(t, []int{lon.ID, lat.ID}, fresh.DimIDs)
	})
}

func TestAttrs(t *testing.T) {
	newStore := func(t *testing.T) (*Store, int) {
		t.Helper()

		s, err := Create("")
		require.NoError(t, err)
		lat, err := s.DefineDim("lat", 3)
		require.NoError(t, err)
		v, err := s.DefineVar("temp", format.TypeDouble, []int{lat.ID})
		require.NoError(t, err)

		return s, v.ID
	}

	t.Run("GlobalRoundTrip", func(t *testing.T) {
		s, _ := newStore(t)

		require.NoError(t, s.PutAttr(backend.GlobalAttrs, "title", "reanalysis run 42"))
		got, err := s.GetAttr(backend.GlobalAttrs, "title")
		require.NoError(t, err)
		require.Equal(t, "reanalysis run 42", got)
	})

	t.Run("VariableRoundTrip", func(t *testing.T) {
		s, id := newStore(t)

		require.NoError(t, s.PutAttr(id, "units", "degree_Celsius"))
		require.NoError(t, s.PutAttr(id, "valid_range", []float64{-80, 60}))

		got, err := s.GetAttr(id, "valid_range")
		require.NoError(t, err)
		require.Equal(t, []float64{-80, 60}, got)
	})

	t.Run("IntWidensToInt64", func(t *testing.T) {
		s, _ := newStore(t)

		require.NoError(t, s.PutAttr(backend.GlobalAttrs, "members", 12))
		got, err := s.GetAttr(backend.GlobalAttrs, "members")
		require.NoError(t, err)
		require.Equal(t, int64(12), got)
	})

	t.Run("SlicesAreDetached", func(t *testing.T) {
		s, id := newStore(t)

		in := []float64{-80, 60}
		require.NoError(t, s.PutAttr(id, "valid_range", in))
		in[0] = 999

		out, err := s.GetAttr(id, "valid_range")
		require.NoError(t, err)
		require.Equal(t, []float64{-80, 60}, out)

		out.([]float64)[1] = 999
		again, err := s.GetAttr(id, "valid_range")
		require.NoError(t, err)
		require.Equal(t, []float64{-80, 60}, again)
	})

	t.Run("ReplaceKeepsOrder", func(t *testing.T) {
		s, _ := newStore(t)

		require.NoError(t, s.PutAttr(backend.GlobalAttrs, "title", "v1"))
		require.NoError(t, s.PutAttr(backend.GlobalAttrs, "history", "created"))
		require.NoError(t, s.PutAttr(backend.GlobalAttrs, "title", "v2"))

		names, err := s.AttrNames(backend.GlobalAttrs)
		require.NoError(t, err)
		require.Equal(t, []string{"title", "history"}, names)

		got, err := s.GetAttr(backend.GlobalAttrs, "title")
		require.NoError(t, err)
		require.Equal(t, "v2", got)
	})

	t.Run("Delete", func(t *testing.T) {
		s, _ := newStore(t)

		require.NoError(t, s.PutAttr(backend.GlobalAttrs, "a", int32(1)))
		require.NoError(t, s.PutAttr(backend.GlobalAttrs, "b", int32(2)))
		require.NoError(t, s.PutAttr(backend.GlobalAttrs, "c", int32(3)))

		require.NoError(t, s.DelAttr(backend.GlobalAttrs, "b"))
		names, err := s.AttrNames(backend.GlobalAttrs)
		require.NoError(t, err)
		require.Equal(t, []string{"a", "c"}, names)

		err = s.DelAttr(backend.GlobalAttrs, "b")
		require.ErrorIs(t, err, errs.ErrAttrNotFound)
		requireStatus(t, err, backend.StatusNotAtt)
	})

	t.Run("UnknownAttrFails", func(t *testing.T) {
		s, id := newStore(t)

		_, err := s.GetAttr(id, "missing")
		require.ErrorIs(t, err, errs.ErrAttrNotFound)
	})

	t.Run("UnknownOwnerFails", func(t *testing.T) {
		s, _ := newStore(t)

		err := s.PutAttr(17, "units", "m")
		require.ErrorIs(t, err, errs.ErrVarNotFound)
	})

	t.Run("UnsupportedValueFails", func(t *testing.T) {
		s, _ := newStore(t)

		err := s.PutAttr(backend.GlobalAttrs, "bad", struct{ X int }{1})
		require.ErrorIs(t, err, errs.ErrInvalidValueType)
	})

	t.Run("AllowedInDataMode", func(t *testing.T) {
		s, id := newStore(t)
		require.NoError(t, s.SetMode(format.ModeData))

		require.NoError(t, s.PutAttr(id, "comment", "added after end of definitions"))
		got, err := s.GetAttr(id, "comment")
		require.NoError(t, err)
		require.Equal(t, "added after end of definitions", got)
	})
}

func TestModes(t *testing.T) {
	t.Run("SetModeIdempotent", func(t *testing.T) {
		s, err := Create("")
		require.NoError(t, err)

		require.NoError(t, s.SetMode(format.ModeDefine))
		require.NoError(t, s.SetMode(format.ModeData))
		require.NoError(t, s.SetMode(format.ModeData))
		require.Equal(t, format.ModeData, s.Mode())
	})

	t.Run("UnknownModeFails", func(t *testing.T) {
		s, err := Create("")
		require.NoError(t, err)

		require.ErrorIs(t, s.SetMode(format.Mode(0x7)), errs.ErrWrongMode)
	})

	t.Run("TransfersRequireDataMode", func(t *testing.T) {
		s, err := Create("")
		require.NoError(t, err)
		lat, err := s.DefineDim("lat", 2)
		require.NoError(t, err)
		v, err := s.DefineVar("temp", format.TypeDouble, []int{lat.ID})
		require.NoError(t, err)

		err = s.WriteAll(v.ID, []float64{1, 2})
		require.ErrorIs(t, err, errs.ErrWrongMode)
		requireStatus(t, err, backend.StatusInDefine)

		err = s.ReadAll(v.ID, make([]float64, 2))
		require.ErrorIs(t, err, errs.ErrWrongMode)
	})

	t.Run("ReenterDefineMode", func(t *testing.T) {
		s, err := Create("")
		require.NoError(t, err)
		lat, err := s.DefineDim("lat", 2)
		require.NoError(t, err)
		v, err := s.DefineVar("temp", format.TypeDouble, []int{lat.ID})
		require.NoError(t, err)

		require.NoError(t, s.SetMode(format.ModeData))
		require.NoError(t, s.WriteAll(v.ID, []float64{1, 2}))

		// Back to define mode to extend the schema, then verify old data
		// survived and the new variable starts filled.
		require.NoError(t, s.SetMode(format.ModeDefine))
		v2, err := s.DefineVar("salinity", format.TypeDouble, []int{lat.ID})
		require.NoError(t, err)
		require.NoError(t, s.SetMode(format.ModeData))

		dst := make([]float64, 2)
		require.NoError(t, s.ReadAll(v.ID, dst))
		require.Equal(t, []float64{1, 2}, dst)

		require.NoError(t, s.ReadAll(v2.ID, dst))
		require.Equal(t, []float64{format.FillDouble, format.FillDouble}, dst)
	})
}

func TestReadOnly(t *testing.T) {
	newImage := func(t *testing.T) []byte {
		t.Helper()

		s, err := Create("")
		require.NoError(t, err)
		lat, err := s.DefineDim("lat", 2)
		require.NoError(t, err)
		v, err := s.DefineVar("temp", format.TypeDouble, []int{lat.ID})
		require.NoError(t, err)
		require.NoError(t, s.PutAttr(v.ID, "units", "K"))
		require.NoError(t, s.SetMode(format.ModeData))
		require.NoError(t, s.WriteAll(v.ID, []float64{271.3, 275.9}))

		data, err := s.Bytes()
		require.NoError(t, err)

		return data
	}

	t.Run("OpenedStoresRejectWrites", func(t *testing.T) {
		s, err := FromBytes(newImage(t))
		require.NoError(t, err)

		err = s.WriteAll(0, []float64{0, 0})
		require.ErrorIs(t, err, errs.ErrReadOnly)
		requireStatus(t, err, backend.StatusPerm)

		err = s.PutAttr(backend.GlobalAttrs, "title", "x")
		require.ErrorIs(t, err, errs.ErrReadOnly)

		err = s.SetMode(format.ModeDefine)
		require.ErrorIs(t, err, errs.ErrReadOnly)
	})

	t.Run("ReadsStillWork", func(t *testing.T) {
		s, err := FromBytes(newImage(t))
		require.NoError(t, err)

		dst := make([]float64, 2)
		require.NoError(t, s.ReadAll(0, dst))
		require.Equal(t, []float64{271.3, 275.9}, dst)
	})

	t.Run("WithAppendAllowsWrites", func(t *testing.T) {
		s, err := FromBytes(newImage(t), WithAppend())
		require.NoError(t, err)

		require.NoError(t, s.WriteAll(0, []float64{1, 2}))
		require.NoError(t, s.SetMode(format.ModeDefine))
	})
}

func TestRecordGrowth(t *testing.T) {
	newRecordStore := func(t *testing.T) (*Store, backend.VarInfo, backend.VarInfo) {
		t.Helper()

		s, err := Create("")
		require.NoError(t, err)
		lon, err := s.DefineDim("lon", 2)
		require.NoError(t, err)
		tm, err := s.DefineDim("time", backend.UnlimitedLen)
		require.NoError(t, err)

		series, err := s.DefineVar("level", format.TypeInt, []int{tm.ID})
		require.NoError(t, err)
		grid, err := s.DefineVar("wind", format.TypeDouble, []int{lon.ID, tm.ID})
		require.NoError(t, err)

		require.NoError(t, s.SetMode(format.ModeData))

		return s, series, grid
	}

	t.Run("WriteSlabGrows", func(t *testing.T) {
		s, series, _ := newRecordStore(t)

		require.NoError(t, s.WriteSlab(series.ID, []int{2}, []int{1}, nil, []int32{7}))

		tm, err := s.DimByName("time")
		require.NoError(t, err)
		require.Equal(t, 3, tm.Len)

		dst := make([]int32, 3)
		require.NoError(t, s.ReadAll(series.ID, dst))
		require.Equal(t, []int32{format.FillInt, format.FillInt, 7}, dst)
	})

	t.Run("AllRecordVarsGrowTogether", func(t *testing.T) {
		s, series, grid := newRecordStore(t)

		require.NoError(t, s.WriteSlab(series.ID, []int{1}, []int{1}, nil, []int32{5}))

		// The other record variable grew too, pre-filled per record.
		dst := make([]float64, 4)
		require.NoError(t, s.ReadAll(grid.ID, dst))
		for _, v := range dst {
			require.Equal(t, format.FillDouble, v)
		}
	})

	t.Run("RecordsStayContiguous", func(t *testing.T) {
		s, _, grid := newRecordStore(t)

		// Record 0 then record 1 of a variable with one fixed dimension.
		require.NoError(t, s.WriteSlab(grid.ID, []int{0, 0}, []int{2, 1}, nil, []float64{1, 2}))
		require.NoError(t, s.WriteSlab(grid.ID, []int{0, 1}, []int{2, 1}, nil, []float64{3, 4}))

		dst := make([]float64, 4)
		require.NoError(t, s.ReadAll(grid.ID, dst))
		require.Equal(t, []float64{1, 2, 3, 4}, dst)
	})

	t.Run("WritePointGrows", func(t *testing.T) {
		s, series, _ := newRecordStore(t)

		require.NoError(t, s.WritePoint(series.ID, []int{4}, int32(9)))

		tm, err := s.DimByName("time")
		require.NoError(t, err)
		require.Equal(t, 5, tm.Len)

		got, err := s.ReadPoint(series.ID, []int{4})
		require.NoError(t, err)
		require.Equal(t, int32(9), got)

		gap, err := s.ReadPoint(series.ID, []int{3})
		require.NoError(t, err)
		require.Equal(t, format.FillInt, gap)
	})

	t.Run("ReadsNeverGrow", func(t *testing.T) {
		s, series, _ := newRecordStore(t)

		err := s.ReadSlab(series.ID, []int{0}, []int{1}, nil, make([]int32, 1))
		require.ErrorIs(t, err, errs.ErrIndexOutOfRange)

		_, err = s.ReadPoint(series.ID, []int{0})
		require.ErrorIs(t, err, errs.ErrIndexOutOfRange)
	})

	t.Run("FixedVarsUnaffected", func(t *testing.T) {
		s, series, _ := newRecordStore(t)
		require.NoError(t, s.SetMode(format.ModeDefine))
		lonVar, err := s.DefineVar("lon_deg", format.TypeFloat, []int{0})
		require.NoError(t, err)
		require.NoError(t, s.SetMode(format.ModeData))

		require.NoError(t, s.WriteSlab(series.ID, []int{3}, []int{1}, nil, []int32{1}))

		dst := make([]float32, 2)
		require.NoError(t, s.ReadAll(lonVar.ID, dst))
	})
}

func TestClose(t *testing.T) {
	t.Run("Idempotent", func(t *testing.T) {
		s, err := Create("")
		require.NoError(t, err)

		require.NoError(t, s.Close())
		require.NoError(t, s.Close())
	})

	t.Run("OperationsFailAfterClose", func(t *testing.T) {
		s, err := Create("")
		require.NoError(t, err)
		lat, err := s.DefineDim("lat", 2)
		require.NoError(t, err)
		v, err := s.DefineVar("temp", format.TypeDouble, []int{lat.ID})
		require.NoError(t, err)
		require.NoError(t, s.Close())

		_, err = s.Dim(lat.ID)
		requireStatus(t, err, backend.StatusBadID)

		err = s.WriteAll(v.ID, []float64{1, 2})
		requireStatus(t, err, backend.StatusBadID)

		_, err = s.Bytes()
		requireStatus(t, err, backend.StatusBadID)

		err = s.Sync()
		requireStatus(t, err, backend.StatusBadID)
	})
}
