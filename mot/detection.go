package mot

// Detection is a single detector output in original frame coordinates.
// Detections live for one frame-processing cycle only: they are produced
// by the post-filter, consumed by the association step and discarded.
type Detection struct {
	Box        Rectangle
	Confidence float64
	// ClassID is carried alongside ClassName through the whole pipeline
	// so consumers never have to reverse-search a label table.
	ClassID   int
	ClassName string
	// Embedding is an optional L2-normalized appearance descriptor.
	// Nil when appearance matching is disabled.
	Embedding []float64
}
