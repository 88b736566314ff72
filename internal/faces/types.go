// Package faces holds the observation model and the in-memory embedding
// store for one clustering run.
package faces

// Noise is the cluster id assigned to observations that the clustering
// algorithm could not attach to any cluster.
const Noise = -1

// BoundingBox describes where a face sits inside its source image.
// Coordinates are raw pixels: [x1, y1] top-left, [x2, y2] bottom-right.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`

	// Confidence is the detector score for this face, 0 when unknown.
	Confidence float64 `json:"confidence,omitempty"`

	// Landmarks are optional [x, y] points (eyes, nose, mouth corners).
	Landmarks [][2]float64 `json:"landmarks,omitempty"`
}

// Width returns the box width in pixels.
func (b BoundingBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the box height in pixels.
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

// Observation is one detected face: its location, its embedding and the
// cluster it currently belongs to. ClusterID is the only field that changes
// after creation; everything else is set once by the detector.
type Observation struct {
	ID         int64       `json:"id"`
	SourcePath string      `json:"source_path"`
	FaceIndex  int         `json:"face_index"`
	BBox       BoundingBox `json:"bounding_box"`
	Embedding  []float32   `json:"embedding"`
	ClusterID  int         `json:"cluster_id"`
}
