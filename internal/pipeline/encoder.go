package pipeline

import (
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
)

// EncodeRow flattens a pose into a row. A result without keypoints encodes as
// all zeros; a missing visibility encodes as 0.
func EncodeRow(index int, result entity.PoseResult) (entity.Row, error) {
	row := entity.Row{Frame: index}

	kps := result.Keypoints()
	switch len(kps) {
	case 0:
		return row, nil
	case entity.LandmarkCount:
	default:
		return entity.Row{}, &SchemaViolationError{Frame: index, Count: len(kps)}
	}

	for i, kp := range kps {
		off := i * entity.ValuesPerLandmark
		row.Values[off] = kp.X
		row.Values[off+1] = kp.Y
		row.Values[off+2] = kp.Z
		if kp.Visibility != nil {
			row.Values[off+3] = *kp.Visibility
		}
	}
	return row, nil
}

// formatRow renders row into record, which must have entity.RowWidth slots.
func formatRow(row entity.Row, record []string) []string {
	record[0] = strconv.Itoa(row.Frame)
	for i, v := range row.Values {
		record[i+1] = formatFloat(v)
	}
	return record
}

// formatFloat writes the shortest representation that round-trips, keeping a
// trailing ".0" on integral values so every landmark column reads as a float.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}
