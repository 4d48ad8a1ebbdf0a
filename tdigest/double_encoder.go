/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package tdigest

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/dsketch-io/gosketch/internal"
)

// DoubleEncoder writes a Double to an io.Writer, streaming one field at a
// time rather than building the whole buffer up front the way EncodeDouble
// does. Prefer this form when the destination is itself a stream (a file,
// a network connection) and the intermediate allocation isn't wanted.
type DoubleEncoder struct {
	w          io.Writer
	withBuffer bool
}

// NewDoubleEncoder wraps w in a DoubleEncoder. withBuffer controls whether
// Encode compresses the sketch (folding buffered values into the centroids)
// before writing, or preserves them in the updatable wire layout.
func NewDoubleEncoder(w io.Writer, withBuffer bool) DoubleEncoder {
	return DoubleEncoder{
		w:          w,
		withBuffer: withBuffer,
	}
}

// encodingFlags packs the empty/single-value/reverse-merge booleans a
// Double's wire header carries into a single flags byte.
func encodingFlags(sketch *Double) byte {
	var flags byte
	if sketch.IsEmpty() {
		flags |= 1 << serializationFlagIsEmpty
	}
	if sketch.isSingleValue() {
		flags |= 1 << serializationFlagIsSingleValue
	}
	if sketch.reverseMerge {
		flags |= 1 << serializationFlagReverseMerge
	}
	return flags
}

// Encode writes sketch's preamble, flags, and (unless empty) its min/max,
// centroids, and buffered values to the underlying writer.
func (enc *DoubleEncoder) Encode(sketch *Double) error {
	if !enc.withBuffer {
		sketch.compress() // side effect
	}

	if err := binary.Write(enc.w, binary.LittleEndian, sketch.preambleLongs()); err != nil {
		return err
	}

	if err := binary.Write(enc.w, binary.LittleEndian, serialVersion); err != nil {
		return err
	}

	if err := binary.Write(enc.w, binary.LittleEndian, uint8(internal.FamilyEnum.TDigest.Id)); err != nil {
		return err
	}

	if err := binary.Write(enc.w, binary.LittleEndian, sketch.k); err != nil {
		return err
	}

	if err := binary.Write(enc.w, binary.LittleEndian, encodingFlags(sketch)); err != nil {
		return err
	}

	var unused uint16
	if err := binary.Write(enc.w, binary.LittleEndian, unused); err != nil {
		return err
	}

	if sketch.IsEmpty() {
		return nil
	}

	if sketch.isSingleValue() {
		if err := binary.Write(enc.w, binary.LittleEndian, sketch.min); err != nil {
			return err
		}

		return nil
	}

	if err := binary.Write(enc.w, binary.LittleEndian, uint32(len(sketch.centroids))); err != nil {
		return err
	}

	if err := binary.Write(enc.w, binary.LittleEndian, uint32(len(sketch.buffer))); err != nil {
		return err
	}

	if err := binary.Write(enc.w, binary.LittleEndian, sketch.min); err != nil {
		return err
	}

	if err := binary.Write(enc.w, binary.LittleEndian, sketch.max); err != nil {
		return err
	}

	for _, c := range sketch.centroids {
		if err := binary.Write(enc.w, binary.LittleEndian, c.mean); err != nil {
			return err
		}

		if err := binary.Write(enc.w, binary.LittleEndian, c.weight); err != nil {
			return err
		}
	}

	if len(sketch.buffer) > 0 {
		for _, v := range sketch.buffer {
			if err := binary.Write(enc.w, binary.LittleEndian, v); err != nil {
				return err
			}
		}
	}

	return nil
}

// EncodeDouble serializes sketch into a freshly allocated byte slice sized
// exactly to SerializedSizeBytes, filling it by direct offset writes
// instead of going through an io.Writer.
func EncodeDouble(sketch *Double, withBuffer bool) ([]byte, error) {
	if !withBuffer {
		sketch.compress() // side effect
	}

	offset := 0
	buf := make([]byte, sketch.SerializedSizeBytes(withBuffer))

	buf[offset] = sketch.preambleLongs()
	offset++

	buf[offset] = serialVersion
	offset++

	buf[offset] = uint8(internal.FamilyEnum.TDigest.Id)
	offset++

	binary.LittleEndian.PutUint16(buf[offset:], sketch.k)
	offset += 2

	buf[offset] = encodingFlags(sketch)
	offset++

	// 2 bytes unused
	offset += 2

	if sketch.IsEmpty() {
		return buf, nil
	}

	if sketch.isSingleValue() {
		binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(sketch.min))

		return buf, nil
	}

	binary.LittleEndian.PutUint32(buf[offset:], uint32(len(sketch.centroids)))
	offset += 4

	binary.LittleEndian.PutUint32(buf[offset:], uint32(len(sketch.buffer)))
	offset += 4

	binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(sketch.min))
	offset += 8

	binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(sketch.max))
	offset += 8

	for _, c := range sketch.centroids {
		binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(c.mean))
		offset += 8
		binary.LittleEndian.PutUint64(buf[offset:], c.weight)
		offset += 8
	}

	if len(sketch.buffer) > 0 {
		for _, v := range sketch.buffer {
			binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(v))
			offset += 8
		}
	}

	return buf, nil
}
