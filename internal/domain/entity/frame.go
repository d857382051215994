package entity

// Frame is one decoded image, stored row-major with Channels bytes per pixel
// (3 for RGB, 4 for RGBA). Pix is only valid until the next frame is requested
// from the same source.
type Frame struct {
	Index    int
	Width    int
	Height   int
	Channels int
	Pix      []byte
}
