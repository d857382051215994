package pipeline

import (
	"fmt"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
)

var columns = buildColumns()

func buildColumns() []string {
	cols := make([]string, 0, entity.RowWidth)
	cols = append(cols, "frame")
	for i := 0; i < entity.LandmarkCount; i++ {
		cols = append(cols,
			fmt.Sprintf("lmk_%d_x", i),
			fmt.Sprintf("lmk_%d_y", i),
			fmt.Sprintf("lmk_%d_z", i),
			fmt.Sprintf("lmk_%d_v", i),
		)
	}
	return cols
}

// Columns returns the table header: "frame" followed by lmk_<i>_x, _y, _z and
// _v for every landmark in order.
func Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns)
	return out
}
