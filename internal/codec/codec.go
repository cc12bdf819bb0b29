// Package codec implements the fixed-width binary wire format for a single
// command: five big-endian uint16 values in the order code, param1..param4.
package codec

import (
	"encoding/binary"
	"fmt"

	"fleet-command-server/internal/model"
)

// FrameSize is the exact length of an encoded command.
const FrameSize = 10

// RangeError reports a field outside [0, 65535]. Values are never silently
// truncated.
type RangeError struct {
	Field string
	Value int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s out of range: %d", e.Field, e.Value)
}

// Encode serializes cmd into a 10-byte frame.
func Encode(cmd model.Command) ([]byte, error) {
	values := [5]int{cmd.Code, cmd.Params[0], cmd.Params[1], cmd.Params[2], cmd.Params[3]}
	names := [5]string{"code", "param1", "param2", "param3", "param4"}

	buf := make([]byte, FrameSize)
	for i, v := range values {
		if v < 0 || v > 0xFFFF {
			return nil, &RangeError{Field: names[i], Value: v}
		}
		binary.BigEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf, nil
}

// Decode parses a 10-byte frame back into a code and four parameters.
func Decode(frame []byte) (code int, params [4]int, err error) {
	if len(frame) != FrameSize {
		return 0, params, fmt.Errorf("frame must be %d bytes, got %d", FrameSize, len(frame))
	}
	code = int(binary.BigEndian.Uint16(frame[0:]))
	for i := range params {
		params[i] = int(binary.BigEndian.Uint16(frame[2+i*2:]))
	}
	return code, params, nil
}
