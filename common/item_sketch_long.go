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

package common

import (
	"encoding/binary"
)

// ItemSketchLongSerDe serializes int64 items to/from the fixed 8-byte
// little-endian wire form KLL uses for this element type.
type ItemSketchLongSerDe struct{}

// ItemSketchLongComparator returns the natural (or, if reverseOrder,
// reversed) int64 ordering as a common.CompareFn for the KLL compactor.
var ItemSketchLongComparator = func(reverseOrder bool) CompareFn[int64] {
	return func(a, b int64) bool {
		if reverseOrder {
			return a > b
		}
		return a < b
	}
}

const int64Width = 8

func (f ItemSketchLongSerDe) SizeOf(item int64) int {
	return int64Width
}

func (f ItemSketchLongSerDe) SizeOfMany(mem []byte, offsetBytes int, numItems int) (int, error) {
	return numItems * int64Width, nil
}

func (f ItemSketchLongSerDe) SerializeOneToSlice(item int64) []byte {
	out := make([]byte, int64Width)
	binary.LittleEndian.PutUint64(out, uint64(item))
	return out
}

func (f ItemSketchLongSerDe) SerializeManyToSlice(items []int64) []byte {
	if len(items) == 0 {
		return []byte{}
	}
	out := make([]byte, int64Width*len(items))
	for i, v := range items {
		binary.LittleEndian.PutUint64(out[i*int64Width:], uint64(v))
	}
	return out
}

func (f ItemSketchLongSerDe) DeserializeManyFromSlice(mem []byte, offsetBytes int, numItems int) ([]int64, error) {
	if numItems == 0 {
		return []int64{}, nil
	}
	out := make([]int64, numItems)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(mem[offsetBytes:]))
		offsetBytes += int64Width
	}
	return out, nil
}
