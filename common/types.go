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

// Package common holds the element-type plumbing shared by the generic
// sketches (currently the KLL family): how two items of the same type
// compare, how an item hashes, and how a slice of items reads and writes
// to a wire buffer.
package common

// CompareFn reports whether a is strictly less than b, the same contract
// Go's sort/slices packages expect from a "less" function.
type CompareFn[C comparable] func(a, b C) bool

// ItemSketchHasher produces a 64-bit hash for an item of type C. Only
// sketches that bucket items by hash (not the quantile sketches in this
// module) need one; it's declared here so a future hash-based generic
// sketch can reuse the same type parameter plumbing as ItemSketchSerde.
type ItemSketchHasher[C comparable] interface {
	Hash(item C) uint64
}

// ItemSketchSerde converts between in-memory items of type C and their
// wire representation. Fixed-width types (float64, int64, float32) size
// every item the same; variable-width types (string) must walk the buffer
// to size a run of items, which is why SizeOfMany takes an offset and a
// count rather than assuming item_size*count.
type ItemSketchSerde[C comparable] interface {
	// SizeOf returns the serialized size, in bytes, of a single item.
	SizeOf(item C) int
	// SizeOfMany returns the serialized size of numItems consecutive items
	// starting at offsetBytes within mem.
	SizeOfMany(mem []byte, offsetBytes int, numItems int) (int, error)
	SerializeManyToSlice(items []C) []byte
	SerializeOneToSlice(item C) []byte
	DeserializeManyFromSlice(mem []byte, offsetBytes int, numItems int) ([]C, error)
}
