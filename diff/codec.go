// This file is part of Tapedeck.
//
// Tapedeck is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Tapedeck is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Tapedeck.  If not, see <https://www.gnu.org/licenses/>.

package diff

import (
	"encoding/binary"

	"tapedeck/curated"

	"github.com/klauspost/compress/zstd"
)

// the delta is the candidate XORed against the (zero extended) baseline and
// then compressed. machine states a few hundred frames apart are mostly
// identical so the XOR stream is sparse and compresses well.
//
// EncodeAll/DecodeAll on shared instances are safe for concurrent use.
var encoder *zstd.Encoder
var decoder *zstd.Decoder

func init() {
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
}

// xorExtend XORs each byte of buf against the corresponding byte of ref.
// bytes of buf beyond the length of ref are XORed against zero.
func xorExtend(buf []byte, ref []byte) []byte {
	x := make([]byte, len(buf))
	for i := range buf {
		var r byte
		if i < len(ref) {
			r = ref[i]
		}
		x[i] = buf[i] ^ r
	}
	return x
}

// Encode produces a compact delta of the candidate buffer relative to the
// baseline buffer. The candidate can be reconstructed exactly with Decode().
func Encode(baseline []byte, candidate []byte) []byte {
	delta := binary.AppendUvarint(nil, uint64(len(candidate)))
	return encoder.EncodeAll(xorExtend(candidate, baseline), delta)
}

// Decode reconstructs the candidate buffer from the baseline it was encoded
// against and the delta produced by Encode().
func Decode(baseline []byte, delta []byte) ([]byte, error) {
	length, n := binary.Uvarint(delta)
	if n <= 0 {
		return nil, curated.Errorf("diff: malformed delta header")
	}

	x, err := decoder.DecodeAll(delta[n:], nil)
	if err != nil {
		return nil, curated.Errorf("diff: %v", err)
	}
	if uint64(len(x)) != length {
		return nil, curated.Errorf("diff: delta length mismatch (%d - wanted %d)", len(x), length)
	}

	return xorExtend(x, baseline), nil
}
