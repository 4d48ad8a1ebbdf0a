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
	"errors"
)

// ItemSketchStringSerDe serializes string items to/from a length-prefixed
// wire form: a 4-byte little-endian UTF-8 byte count followed by the raw
// bytes, the variable-width counterpart to the fixed-width numeric serdes.
type ItemSketchStringSerDe struct{}

// ItemSketchStringComparator returns the natural (or, if reverseOrder,
// reversed) lexicographic string ordering as a common.CompareFn for the
// KLL compactor.
var ItemSketchStringComparator = func(reverseOrder bool) CompareFn[string] {
	return func(a, b string) bool {
		if reverseOrder {
			return a > b
		}
		return a < b
	}
}

// stringLenPrefixWidth is the size, in bytes, of the little-endian UTF-8
// byte count that precedes every serialized string item.
const stringLenPrefixWidth = 4

func (f ItemSketchStringSerDe) SizeOf(item string) int {
	return len(item) + stringLenPrefixWidth
}

func (f ItemSketchStringSerDe) SizeOfMany(mem []byte, offsetBytes int, numItems int) (int, error) {
	if numItems <= 0 {
		return 0, nil
	}
	memCap := len(mem)
	offset := offsetBytes
	for i := 0; i < numItems; i++ {
		if !checkBounds(offset, stringLenPrefixWidth, memCap) {
			return 0, errors.New("offset out of bounds")
		}
		itemLen := int(binary.LittleEndian.Uint32(mem[offset:]))
		offset += stringLenPrefixWidth
		if !checkBounds(offset, itemLen, memCap) {
			return 0, errors.New("offset out of bounds")
		}
		offset += itemLen
	}
	return offset - offsetBytes, nil
}

func (f ItemSketchStringSerDe) SerializeOneToSlice(item string) []byte {
	if len(item) == 0 {
		return []byte{}
	}
	out := make([]byte, stringLenPrefixWidth+len(item))
	binary.LittleEndian.PutUint32(out, uint32(len(item)))
	copy(out[stringLenPrefixWidth:], item)
	return out
}

func (f ItemSketchStringSerDe) SerializeManyToSlice(items []string) []byte {
	if len(items) == 0 {
		return []byte{}
	}
	totalBytes := 0
	for _, s := range items {
		totalBytes += len(s) + stringLenPrefixWidth
	}
	out := make([]byte, totalBytes)
	offset := 0
	for _, s := range items {
		binary.LittleEndian.PutUint32(out[offset:], uint32(len(s)))
		offset += stringLenPrefixWidth
		offset += copy(out[offset:], s)
	}
	return out
}

func (f ItemSketchStringSerDe) DeserializeManyFromSlice(mem []byte, offsetBytes int, numItems int) ([]string, error) {
	if numItems <= 0 {
		return []string{}, nil
	}
	out := make([]string, numItems)
	memCap := len(mem)
	offset := offsetBytes
	for i := range out {
		if !checkBounds(offset, stringLenPrefixWidth, memCap) {
			return nil, errors.New("offset out of bounds")
		}
		strLen := int(binary.LittleEndian.Uint32(mem[offset:]))
		offset += stringLenPrefixWidth
		if !checkBounds(offset, strLen, memCap) {
			return nil, errors.New("offset out of bounds")
		}
		raw := make([]byte, strLen)
		copy(raw, mem[offset:offset+strLen])
		offset += strLen
		out[i] = string(raw)
	}
	return out, nil
}
