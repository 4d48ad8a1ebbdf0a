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
	"math"
)

// ItemSketchDoubleSerDe serializes float64 items to/from the fixed 8-byte
// little-endian wire form KLL uses for this element type.
type ItemSketchDoubleSerDe struct{}

// ItemSketchDoubleComparator returns the natural (or, if reverseOrder,
// reversed) float64 ordering as a common.CompareFn for the KLL compactor.
var ItemSketchDoubleComparator = func(reverseOrder bool) CompareFn[float64] {
	return func(a float64, b float64) bool {
		if reverseOrder {
			return a > b
		}
		return a < b
	}
}

const float64Width = 8

func (f ItemSketchDoubleSerDe) SizeOf(item float64) int {
	return float64Width
}

func (f ItemSketchDoubleSerDe) SizeOfMany(mem []byte, offsetBytes int, numItems int) (int, error) {
	return numItems * float64Width, nil
}

func (f ItemSketchDoubleSerDe) SerializeOneToSlice(item float64) []byte {
	out := make([]byte, float64Width)
	binary.LittleEndian.PutUint64(out, math.Float64bits(item))
	return out
}

func (f ItemSketchDoubleSerDe) SerializeManyToSlice(items []float64) []byte {
	if len(items) == 0 {
		return []byte{}
	}
	out := make([]byte, float64Width*len(items))
	for i, v := range items {
		binary.LittleEndian.PutUint64(out[i*float64Width:], math.Float64bits(v))
	}
	return out
}

func (f ItemSketchDoubleSerDe) DeserializeManyFromSlice(mem []byte, offsetBytes int, numItems int) ([]float64, error) {
	if numItems == 0 {
		return []float64{}, nil
	}
	out := make([]float64, numItems)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(mem[offsetBytes:]))
		offsetBytes += float64Width
	}
	return out, nil
}
