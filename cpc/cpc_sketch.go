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

package cpc

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"sort"

	"github.com/dsketch-io/gosketch/internal"
	"github.com/twmb/murmur3"
)

const (
	minLgK = 4
	maxLgK = 26
)

// CpcSketch is a Compressed Probabilistic Counting sketch: a streaming
// estimator of the number of distinct items seen, built on a coupon
// (row, column) collection derived from a 64-bit hash of each update.
type CpcSketch struct {
	seed uint64

	//common variables
	lgK        int
	numCoupons uint64 // The number of coupons collected so far.
	mergeFlag  bool   // Is the sketch the result of merging?
	fiCol      int    // First Interesting Column. This is part of a speed optimization.

	windowOffset  int
	slidingWindow []byte     //either nil or size K bytes
	pairTable     *pairTable //for sparse and surprising values, either nil or variable size

	//The following variables are only valid in HIP variants
	kxp         float64 //used with HIP
	hipEstAccum float64 //used with HIP
}

// NewCpcSketch constructs an empty CpcSketch with the given log2(K) and update seed.
func NewCpcSketch(lgK int, seed uint64) (*CpcSketch, error) {
	if err := checkLgK(lgK); err != nil {
		return nil, err
	}

	return &CpcSketch{
		lgK:  lgK,
		seed: seed,
		kxp:  float64(int64(1) << lgK),
	}, nil
}

// NewCpcSketchWithDefault constructs an empty CpcSketch using the library's default update seed.
func NewCpcSketchWithDefault(lgK int) (*CpcSketch, error) {
	return NewCpcSketch(lgK, internal.DEFAULT_UPDATE_SEED)
}

// Copy returns a deep copy of the sketch.
func (c *CpcSketch) Copy() (*CpcSketch, error) {
	out := &CpcSketch{
		seed:         c.seed,
		lgK:          c.lgK,
		numCoupons:   c.numCoupons,
		mergeFlag:    c.mergeFlag,
		fiCol:        c.fiCol,
		windowOffset: c.windowOffset,
		kxp:          c.kxp,
		hipEstAccum:  c.hipEstAccum,
	}
	if c.slidingWindow != nil {
		out.slidingWindow = append([]byte(nil), c.slidingWindow...)
	}
	if c.pairTable != nil {
		t, err := NewPairTable(c.pairTable.lgSizeInts, c.pairTable.validBits)
		if err != nil {
			return nil, err
		}
		t.numPairs = c.pairTable.numPairs
		copy(t.slotsArr, c.pairTable.slotsArr)
		out.pairTable = t
	}
	return out, nil
}

func (c *CpcSketch) getFormat() CpcFormat {
	ordinal := 0
	f := c.getFlavor()
	if f == CpcFlavorHybrid || f == CpcFlavorSparse {
		ordinal = 2
		if !c.mergeFlag {
			ordinal |= 1
		}
	} else {
		ordinal = 0
		if c.slidingWindow != nil {
			ordinal |= 4
		}
		if c.pairTable != nil && c.pairTable.numPairs > 0 {
			ordinal |= 2
		}
		if !c.mergeFlag {
			ordinal |= 1
		}
	}
	return CpcFormat(ordinal)
}

func (c *CpcSketch) getFlavor() CpcFlavor {
	return determineFlavor(c.lgK, c.numCoupons)
}

func (c *CpcSketch) getFamily() int {
	return internal.FamilyEnum.CPC.Id
}

func (c *CpcSketch) reset() {
	c.numCoupons = 0
	c.mergeFlag = false
	c.fiCol = 0
	c.windowOffset = 0
	c.slidingWindow = nil
	c.pairTable = nil
	c.kxp = float64(int64(1) << c.lgK)
	c.hipEstAccum = 0
}

// --- updates ---

func (c *CpcSketch) hashUpdate(hash0, hash1 uint64) error {
	col := bits.LeadingZeros64(hash1)
	if col > 63 {
		col = 63
	}
	kMask := (1 << uint(c.lgK)) - 1
	row := int(hash0) & kMask
	rowCol := (row << 6) | col
	if rowCol == -1 { // hash1 == 0 is essentially impossible for a real hash function
		row ^= 1
		rowCol = (row << 6) | col
	}
	return c.rowColUpdate(rowCol)
}

func (c *CpcSketch) rowColUpdate(rowCol int) error {
	col := rowCol & 63
	if col < c.fiCol {
		return nil // important speed optimization
	}
	flavor := c.getFlavor()
	if flavor == CpcFlavorEmpty || flavor == CpcFlavorSparse {
		return c.updateSparse(rowCol)
	}
	return c.updateWindowed(rowCol)
}

func (c *CpcSketch) updateSparse(rowCol int) error {
	if c.numCoupons == 0 && c.pairTable == nil {
		t, err := NewPairTable(2, 6+c.lgK)
		if err != nil {
			return err
		}
		c.pairTable = t
	}
	isNovel, err := c.pairTable.maybeInsert(rowCol)
	if err != nil {
		return err
	}
	if !isNovel {
		return nil
	}
	c.numCoupons++
	c.updateHIP(rowCol)
	flavor := c.getFlavor()
	if flavor != CpcFlavorEmpty && flavor != CpcFlavorSparse {
		return c.promoteSparseToWindowed()
	}
	return nil
}

func (c *CpcSketch) updateWindowed(rowCol int) error {
	col := rowCol & 63
	if col < c.fiCol {
		return nil
	}
	row := rowCol >> 6
	var isNovel bool
	if col >= c.windowOffset && col < c.windowOffset+8 {
		oldBits := c.slidingWindow[row]
		newBits := oldBits | (byte(1) << uint(col-c.windowOffset))
		isNovel = newBits != oldBits
		c.slidingWindow[row] = newBits
	} else {
		var err error
		isNovel, err = c.pairTable.maybeInsert(rowCol)
		if err != nil {
			return err
		}
	}
	if !isNovel {
		return nil
	}
	c.numCoupons++
	c.updateHIP(rowCol)
	newOffset := determineCorrectOffset(c.lgK, c.numCoupons)
	if newOffset != c.windowOffset {
		return c.moveWindow(newOffset)
	}
	return nil
}

// updateHIP implements the incremental historic-inverse-probability estimator:
// each novel coupon nudges the running cardinality estimate by K/kxp, and kxp
// is discounted by the probability mass now covered by the coupon's column.
func (c *CpcSketch) updateHIP(rowCol int) {
	col := rowCol & 63
	k := float64(int64(1) << c.lgK)
	c.hipEstAccum += k / c.kxp
	if inv, err := internal.InvPow2(col + 1); err == nil {
		c.kxp -= inv
	}
}

// bitMatrixOfSketch reconstructs the full K-row coupon bit matrix implied by
// the sketch's current (sparse or windowed) representation.
func (c *CpcSketch) bitMatrixOfSketch() ([]uint64, error) {
	k := 1 << c.lgK
	matrix := make([]uint64, k)
	flavor := c.getFlavor()
	if flavor == CpcFlavorEmpty || flavor == CpcFlavorSparse {
		if c.pairTable != nil {
			for _, rowCol := range c.pairTable.slotsArr {
				if rowCol == -1 {
					continue
				}
				row := rowCol >> 6
				col := rowCol & 63
				matrix[row] |= uint64(1) << uint(col)
			}
		}
		return matrix, nil
	}

	offset := c.windowOffset
	earlyZoneBaseline := uint64(0)
	if offset > 0 {
		earlyZoneBaseline = (uint64(1) << uint(offset)) - 1
	}
	for row := 0; row < k; row++ {
		matrix[row] = earlyZoneBaseline
		if c.slidingWindow != nil {
			matrix[row] |= uint64(c.slidingWindow[row]) << uint(offset)
		}
	}
	if c.pairTable != nil {
		for _, rowCol := range c.pairTable.slotsArr {
			if rowCol == -1 {
				continue
			}
			row := rowCol >> 6
			col := rowCol & 63
			if col < offset {
				matrix[row] &^= uint64(1) << uint(col)
			} else {
				matrix[row] |= uint64(1) << uint(col)
			}
		}
	}
	return matrix, nil
}

// rebuildWindowed derives a fresh (window, surprises-table, fiCol) triple from
// a full bit matrix at the given offset. Shared by promotion out of SPARSE and
// by window re-centering as C grows (moveWindow).
func rebuildWindowed(matrix []uint64, lgK, offset int) ([]byte, *pairTable, int, error) {
	k := 1 << lgK
	window := make([]byte, k)
	newTableLgSize := lgK - 4
	if newTableLgSize < 2 {
		newTableLgSize = 2
	}
	table, err := NewPairTable(newTableLgSize, 6+lgK)
	if err != nil {
		return nil, nil, 0, err
	}
	maskForClearingWindow := ^(uint64(0xFF) << uint(offset))
	maskForFlippingEarlyZone := uint64(0)
	if offset > 0 {
		maskForFlippingEarlyZone = (uint64(1) << uint(offset)) - 1
	}
	allSurprisesORed := uint64(0)
	for i := 0; i < k; i++ {
		pattern := matrix[i]
		window[i] = byte((pattern >> uint(offset)) & 0xFF)
		pattern &= maskForClearingWindow
		pattern ^= maskForFlippingEarlyZone
		allSurprisesORed |= pattern
		for pattern != 0 {
			col := bits.TrailingZeros64(pattern)
			pattern &^= uint64(1) << uint(col)
			rowCol := (i << 6) | col
			if _, err := table.maybeInsert(rowCol); err != nil {
				return nil, nil, 0, err
			}
		}
	}
	fiCol := bits.TrailingZeros64(allSurprisesORed)
	if fiCol > offset || allSurprisesORed == 0 {
		fiCol = offset
	}
	return window, table, fiCol, nil
}

func (c *CpcSketch) promoteSparseToWindowed() error {
	matrix, err := c.bitMatrixOfSketch()
	if err != nil {
		return err
	}
	offset := determineCorrectOffset(c.lgK, c.numCoupons)
	window, table, fiCol, err := rebuildWindowed(matrix, c.lgK, offset)
	if err != nil {
		return err
	}
	c.windowOffset = offset
	c.slidingWindow = window
	c.pairTable = table
	c.fiCol = fiCol
	return nil
}

func (c *CpcSketch) moveWindow(newOffset int) error {
	matrix, err := c.bitMatrixOfSketch()
	if err != nil {
		return err
	}
	window, table, fiCol, err := rebuildWindowed(matrix, c.lgK, newOffset)
	if err != nil {
		return err
	}
	c.windowOffset = newOffset
	c.slidingWindow = window
	c.pairTable = table
	c.fiCol = fiCol
	return nil
}

// refreshKXP recomputes kxp from scratch given a full bit matrix; exercised
// after operations, such as Copy followed by direct mutation in tests, that
// bypass the incremental HIP bookkeeping in updateHIP.
func (c *CpcSketch) refreshKXP(matrix []uint64) {
	k := 1 << c.lgK
	kxp := 0.0
	for row := 0; row < k; row++ {
		pattern := ^matrix[row]
		for pattern != 0 {
			col := bits.TrailingZeros64(pattern)
			pattern &^= uint64(1) << uint(col)
			if inv, err := internal.InvPow2(col + 1); err == nil {
				kxp += inv
			}
		}
	}
	c.kxp = kxp
}

// UpdateUint64 presents a 64-bit unsigned datum to the sketch.
func (c *CpcSketch) UpdateUint64(datum uint64) error {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], datum)
	h0, h1 := murmur3.SeedSum128(c.seed, c.seed, scratch[:])
	return c.hashUpdate(h0, h1)
}

// UpdateInt64 presents a 64-bit signed datum to the sketch.
func (c *CpcSketch) UpdateInt64(datum int64) error {
	return c.UpdateUint64(uint64(datum))
}

// UpdateFloat64 presents a float64 datum to the sketch. +0.0 and -0.0 collapse
// to the same coupon.
func (c *CpcSketch) UpdateFloat64(datum float64) error {
	if datum == 0.0 {
		datum = 0.0
	}
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(datum))
	h0, h1 := murmur3.SeedSum128(c.seed, c.seed, scratch[:])
	return c.hashUpdate(h0, h1)
}

// UpdateString presents a UTF-8 string datum to the sketch.
func (c *CpcSketch) UpdateString(datum string) error {
	if len(datum) == 0 {
		return nil
	}
	h0, h1 := murmur3.SeedSum128(c.seed, c.seed, []byte(datum))
	return c.hashUpdate(h0, h1)
}

// UpdateByteSlice presents an arbitrary byte slice datum to the sketch.
func (c *CpcSketch) UpdateByteSlice(datum []byte) error {
	if len(datum) == 0 {
		return nil
	}
	h0, h1 := murmur3.SeedSum128(c.seed, c.seed, datum)
	return c.hashUpdate(h0, h1)
}

// UpdateInt32Slice presents a slice of int32 values, treated as a single
// composite datum, to the sketch.
func (c *CpcSketch) UpdateInt32Slice(datum []int32) error {
	if len(datum) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(datum))
	for i, v := range datum {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(v))
	}
	h0, h1 := murmur3.SeedSum128(c.seed, c.seed, buf)
	return c.hashUpdate(h0, h1)
}

// UpdateInt64Slice presents a slice of int64 values, treated as a single
// composite datum, to the sketch.
func (c *CpcSketch) UpdateInt64Slice(datum []int64) error {
	if len(datum) == 0 {
		return nil
	}
	buf := make([]byte, 8*len(datum))
	for i, v := range datum {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(v))
	}
	h0, h1 := murmur3.SeedSum128(c.seed, c.seed, buf)
	return c.hashUpdate(h0, h1)
}

// --- estimation ---

// GetEstimate returns the best cardinality estimate: the HIP accumulator for
// a sketch that has only ever been updated directly, or the ICON estimator
// once the sketch is the result of a union merge (HIP state does not survive
// a merge).
func (c *CpcSketch) GetEstimate() float64 {
	if c.mergeFlag {
		return iconEstimate(c.lgK, c.numCoupons)
	}
	if c.numCoupons == 0 {
		return 0
	}
	return c.hipEstAccum
}

// GetLowerBound returns a kappa-standard-deviation lower confidence bound.
func (c *CpcSketch) GetLowerBound(kappa int) float64 {
	if c.mergeFlag {
		return iconConfidenceLB(c.lgK, c.numCoupons, kappa)
	}
	return hipConfidenceLB(c.lgK, c.numCoupons, c.hipEstAccum, kappa)
}

// GetUpperBound returns a kappa-standard-deviation upper confidence bound.
func (c *CpcSketch) GetUpperBound(kappa int) float64 {
	if c.mergeFlag {
		return iconConfidenceUB(c.lgK, c.numCoupons, kappa)
	}
	return hipConfidenceUB(c.lgK, c.numCoupons, c.hipEstAccum, kappa)
}

// GetLgK returns log2(K) for this sketch.
func (c *CpcSketch) GetLgK() int {
	return c.lgK
}

// IsEmpty reports whether the sketch has seen any updates.
func (c *CpcSketch) IsEmpty() bool {
	return c.numCoupons == 0
}

// --- serialization ---

// ToCompactSlice serializes the sketch to its compact wire representation,
// choosing one of the eight CPC formats according to its current flavor and
// whether HIP state is retained.
func (c *CpcSketch) ToCompactSlice() ([]byte, error) {
	seedHash, err := internal.ComputeSeedHash(int64(c.seed))
	if err != nil {
		return nil, err
	}
	hasHipState := !c.mergeFlag

	if c.numCoupons == 0 {
		mem := make([]byte, 8)
		if hasHipState {
			err = putEmptyHip(mem, c.lgK, seedHash)
		} else {
			err = putEmptyMerged(mem, c.lgK, seedHash)
		}
		return mem, err
	}

	flavor := c.getFlavor()
	if flavor == CpcFlavorSparse {
		csvStream := sortedPairs(c.pairTable)
		svLen := len(csvStream)
		if hasHipState {
			mem := make([]byte, 4*(getDefinedPreInts(CpcFormatSparseHybridHip)+svLen))
			err = putSparseHybridHip(mem, c.lgK, int(c.numCoupons), svLen, c.kxp, c.hipEstAccum, seedHash, csvStream)
			return mem, err
		}
		mem := make([]byte, 4*(getDefinedPreInts(CpcFormatSparseHybridMerged)+svLen))
		err = putSparseHybridMerged(mem, c.lgK, int(c.numCoupons), svLen, seedHash, csvStream)
		return mem, err
	}

	// Windowed flavors: HYBRID, PINNED, SLIDING.
	var csvStream []int
	numSv := 0
	if c.pairTable != nil {
		csvStream = sortedPairs(c.pairTable)
		numSv = len(csvStream)
	}
	cwStream := windowToStream(c.slidingWindow)
	wLen := len(cwStream)
	svLen := len(csvStream)

	var format CpcFormat
	switch {
	case numSv == 0 && hasHipState:
		format = CpcFormatPinnedSlidingHipNosv
	case numSv == 0 && !hasHipState:
		format = CpcFormatPinnedSlidingMergedNosv
	case numSv > 0 && hasHipState:
		format = CpcFormatPinnedSlidingHip
	default:
		format = CpcFormatPinnedSlidingMerged
	}

	mem := make([]byte, 4*(getDefinedPreInts(format)+svLen+wLen))
	switch format {
	case CpcFormatPinnedSlidingMergedNosv:
		err = putPinnedSlidingMergedNoSv(mem, c.lgK, c.fiCol, int(c.numCoupons), wLen, seedHash, cwStream)
	case CpcFormatPinnedSlidingHipNosv:
		err = putPinnedSlidingHipNoSv(mem, c.lgK, c.fiCol, int(c.numCoupons), wLen, c.kxp, c.hipEstAccum, seedHash, cwStream)
	case CpcFormatPinnedSlidingMerged:
		err = putPinnedSlidingMerged(mem, c.lgK, c.fiCol, int(c.numCoupons), numSv, svLen, wLen, seedHash, csvStream, cwStream)
	case CpcFormatPinnedSlidingHip:
		err = putPinnedSlidingHip(mem, c.lgK, c.fiCol, int(c.numCoupons), numSv, c.kxp, c.hipEstAccum, svLen, wLen, seedHash, csvStream, cwStream)
	}
	return mem, err
}

// NewCpcSketchFromSlice deserializes a compact CPC sketch image produced by ToCompactSlice.
func NewCpcSketchFromSlice(mem []byte, seed uint64) (*CpcSketch, error) {
	if err := checkLoPreamble(mem); err != nil {
		return nil, err
	}
	expectedSeedHash, err := internal.ComputeSeedHash(int64(seed))
	if err != nil {
		return nil, err
	}
	if getSeedHash(mem) != expectedSeedHash {
		return nil, fmt.Errorf("seed hash mismatch: image was serialized with a different seed")
	}
	lgK := getLgK(mem)
	sk, err := NewCpcSketch(lgK, seed)
	if err != nil {
		return nil, err
	}
	format := getFormat(mem)
	if format == CpcFormatEmptyMerged || format == CpcFormatEmptyHip {
		sk.mergeFlag = format == CpcFormatEmptyMerged
		return sk, nil
	}

	sk.mergeFlag = !hasHip(mem)
	sk.numCoupons = getNumCoupons(mem)
	sk.fiCol = getFiCol(mem)
	if hasHip(mem) {
		sk.kxp = getKxP(mem)
		sk.hipEstAccum = getHipAccum(mem)
	}

	switch format {
	case CpcFormatSparseHybridMerged, CpcFormatSparseHybridHip:
		table, err := NewPairTable(2, 6+lgK)
		if err != nil {
			return nil, err
		}
		for _, rc := range getSvStream(mem) {
			if _, err := table.maybeInsert(rc); err != nil {
				return nil, err
			}
		}
		sk.pairTable = table
	case CpcFormatPinnedSlidingMergedNosv, CpcFormatPinnedSlidingHipNosv:
		sk.windowOffset = determineCorrectOffset(lgK, sk.numCoupons)
		sk.slidingWindow = streamToWindow(getWStream(mem), 1<<lgK)
	case CpcFormatPinnedSlidingMerged, CpcFormatPinnedSlidingHip:
		sk.windowOffset = determineCorrectOffset(lgK, sk.numCoupons)
		sk.slidingWindow = streamToWindow(getWStream(mem), 1<<lgK)
		table, err := NewPairTable(2, 6+lgK)
		if err != nil {
			return nil, err
		}
		for _, rc := range getSvStream(mem) {
			if _, err := table.maybeInsert(rc); err != nil {
				return nil, err
			}
		}
		sk.pairTable = table
	default:
		return nil, fmt.Errorf("unsupported CPC format: %v", format)
	}
	return sk, nil
}

// NewCpcSketchFromSliceWithDefault deserializes using the library's default update seed.
func NewCpcSketchFromSliceWithDefault(mem []byte) (*CpcSketch, error) {
	return NewCpcSketchFromSlice(mem, internal.DEFAULT_UPDATE_SEED)
}

func sortedPairs(t *pairTable) []int {
	if t == nil {
		return nil
	}
	out := make([]int, 0, t.numPairs)
	for _, v := range t.slotsArr {
		if v != -1 {
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

func windowToStream(window []byte) []int {
	if window == nil {
		return nil
	}
	out := make([]int, len(window))
	for i, b := range window {
		out[i] = int(b)
	}
	return out
}

func streamToWindow(stream []int, k int) []byte {
	out := make([]byte, k)
	for i, v := range stream {
		if i >= k {
			break
		}
		out[i] = byte(v)
	}
	return out
}
