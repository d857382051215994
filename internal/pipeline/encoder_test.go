package pipeline

import (
	"errors"
	"testing"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRowDetected(t *testing.T) {
	row, err := EncodeRow(4, pose(4))
	require.NoError(t, err)

	assert.Equal(t, 4, row.Frame)
	for i := 0; i < entity.LandmarkCount; i++ {
		off := i * entity.ValuesPerLandmark
		v := float64(i) / 100
		assert.Equal(t, 4.25, row.Values[off], "x of landmark %d", i)
		assert.Equal(t, v, row.Values[off+1], "y of landmark %d", i)
		assert.Equal(t, -v, row.Values[off+2], "z of landmark %d", i)
		assert.Equal(t, v, row.Values[off+3], "visibility of landmark %d", i)
	}
}

func TestEncodeRowNotDetected(t *testing.T) {
	for name, result := range map[string]entity.PoseResult{
		"not detected": entity.NotDetected(),
		"empty":        entity.Detected([]entity.Keypoint{}),
	} {
		t.Run(name, func(t *testing.T) {
			row, err := EncodeRow(1, result)
			require.NoError(t, err)
			assert.Equal(t, 1, row.Frame)
			for i, v := range row.Values {
				assert.Zero(t, v, "value %d", i)
			}
		})
	}
}

func TestEncodeRowMissingVisibility(t *testing.T) {
	kps := make([]entity.Keypoint, entity.LandmarkCount)
	for i := range kps {
		kps[i] = entity.Keypoint{X: 0.5, Y: 0.5, Z: 0.1}
	}

	row, err := EncodeRow(0, entity.Detected(kps))
	require.NoError(t, err)
	for i := 0; i < entity.LandmarkCount; i++ {
		off := i * entity.ValuesPerLandmark
		assert.Equal(t, 0.5, row.Values[off])
		assert.Zero(t, row.Values[off+3])
	}
}

func TestEncodeRowSchemaViolation(t *testing.T) {
	for _, n := range []int{1, 17, 32, 34, 66} {
		_, err := EncodeRow(9, entity.Detected(make([]entity.Keypoint, n)))
		require.Error(t, err, "count %d", n)
		assert.True(t, errors.Is(err, ErrSchemaViolation))

		var sv *SchemaViolationError
		require.ErrorAs(t, err, &sv)
		assert.Equal(t, 9, sv.Frame)
		assert.Equal(t, n, sv.Count)
	}
}

func TestFormatFloat(t *testing.T) {
	cases := map[float64]string{
		0:       "0.0",
		1:       "1.0",
		-2:      "-2.0",
		0.5:     "0.5",
		-0.25:   "-0.25",
		1e-05:   "1e-05",
		100000:  "100000.0",
		0.12345: "0.12345",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatFloat(in), "formatFloat(%v)", in)
	}
}

func TestFormatRowWidth(t *testing.T) {
	record := formatRow(entity.Row{Frame: 12}, make([]string, entity.RowWidth))
	require.Len(t, record, entity.RowWidth)
	assert.Equal(t, "12", record[0])
	for _, f := range record[1:] {
		assert.Equal(t, "0.0", f)
	}
}
