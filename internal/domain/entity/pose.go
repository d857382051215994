package entity

const (
	// LandmarkCount is the number of body landmarks in a detected pose.
	LandmarkCount = 33
	// ValuesPerLandmark is x, y, z and visibility.
	ValuesPerLandmark = 4
	// LandmarkValues is the number of landmark scalars in a row.
	LandmarkValues = LandmarkCount * ValuesPerLandmark
	// RowWidth is the frame index plus every landmark scalar.
	RowWidth = 1 + LandmarkValues
)

// Keypoint is one landmark estimate. Visibility is nil when the estimator did
// not report it.
type Keypoint struct {
	X          float64
	Y          float64
	Z          float64
	Visibility *float64
}

// PoseResult is the outcome of estimating a single frame: either a detected
// pose with its keypoints in landmark order, or no detection.
type PoseResult struct {
	keypoints []Keypoint
}

func Detected(keypoints []Keypoint) PoseResult {
	return PoseResult{keypoints: keypoints}
}

func NotDetected() PoseResult {
	return PoseResult{}
}

// IsDetected reports whether the estimator returned any keypoints.
func (r PoseResult) IsDetected() bool {
	return len(r.keypoints) > 0
}

func (r PoseResult) Keypoints() []Keypoint {
	return r.keypoints
}

// Row is the flattened encoding of one frame: its index followed by x, y, z
// and visibility for every landmark.
type Row struct {
	Frame  int
	Values [LandmarkValues]float64
}
