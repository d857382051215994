package mediapipe

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// maxMessageSize bounds a single response from the worker.
const maxMessageSize = 16 << 20

type request struct {
	Seq       uint64 `msgpack:"seq"`
	Width     int    `msgpack:"width"`
	Height    int    `msgpack:"height"`
	Channels  int    `msgpack:"channels"`
	FrameData []byte `msgpack:"frame_data"`
}

type landmark struct {
	X          float64  `msgpack:"x"`
	Y          float64  `msgpack:"y"`
	Z          float64  `msgpack:"z"`
	Visibility *float64 `msgpack:"visibility"`
}

type response struct {
	Seq       uint64     `msgpack:"seq"`
	Ready     bool       `msgpack:"ready"`
	Model     string     `msgpack:"model"`
	Landmarks []landmark `msgpack:"landmarks"`
	Error     string     `msgpack:"error"`
}

// writeMessage frames v as a 4-byte big-endian length followed by its
// msgpack encoding.
func writeMessage(w io.Writer, v interface{}) error {
	body, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal msgpack: %w", err)
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write msgpack body: %w", err)
	}
	return nil
}

func readMessage(r io.Reader, v interface{}) error {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return fmt.Errorf("read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > maxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("read msgpack body: %w", err)
	}
	if err := msgpack.Unmarshal(body, v); err != nil {
		return fmt.Errorf("unmarshal msgpack: %w", err)
	}
	return nil
}
