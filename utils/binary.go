// This file is part of duskchain.
//
// duskchain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// duskchain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with duskchain. If not, see <http://www.gnu.org/licenses/>.

// Package utils holds small deterministic encoding helpers shared by the
// core and network packages.
package utils

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Int64ToBytes big-endian encodes a signed 64-bit integer.
func Int64ToBytes(v int64) []byte {
	buf := new(bytes.Buffer)
	// binary.Write never fails for a fixed-size int64 into a bytes.Buffer.
	_ = binary.Write(buf, binary.BigEndian, v)
	return buf.Bytes()
}

// Int32ToBytes big-endian encodes a signed 32-bit integer.
func Int32ToBytes(v int32) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, v)
	return buf.Bytes()
}

// BytesToInt64 decodes a big-endian signed 64-bit integer.
func BytesToInt64(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, errors.Errorf("utils: want 8 bytes for int64, got %d", len(b))
	}
	var v int64
	if err := binary.Read(bytes.NewReader(b), binary.BigEndian, &v); err != nil {
		return 0, errors.Wrap(err, "decode int64")
	}
	return v, nil
}
