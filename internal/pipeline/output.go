package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Output is the finished table of a successful run, spooled to a temporary
// file. Close removes the spool.
type Output struct {
	Summary
	file *os.File
	size int64
}

func (o *Output) Read(p []byte) (int, error) {
	return o.file.Read(p)
}

func (o *Output) Seek(offset int64, whence int) (int64, error) {
	return o.file.Seek(offset, whence)
}

// Size is the length of the encoded table in bytes.
func (o *Output) Size() int64 {
	return o.size
}

func (o *Output) Close() error {
	closeErr := o.file.Close()
	if err := os.Remove(o.file.Name()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove spool: %w", err)
	}
	return closeErr
}

// Run processes the video at path into a spooled table. On failure nothing is
// left behind and no Output is returned.
func (p *Pipeline) Run(ctx context.Context, path string) (*Output, error) {
	spool, err := os.CreateTemp(p.spoolDir, "pose_landmarks_*.csv")
	if err != nil {
		return nil, fmt.Errorf("create spool: %w", err)
	}

	discard := func() {
		spool.Close()
		os.Remove(spool.Name())
	}

	summary, err := p.RunTo(ctx, path, spool)
	if err != nil {
		discard()
		return nil, err
	}

	size, err := spool.Seek(0, io.SeekEnd)
	if err != nil {
		discard()
		return nil, fmt.Errorf("size spool: %w", err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		discard()
		return nil, fmt.Errorf("rewind spool: %w", err)
	}

	return &Output{Summary: summary, file: spool, size: size}, nil
}
