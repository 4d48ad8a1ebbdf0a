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
	"strings"

	"github.com/dsketch-io/gosketch/internal"
)

// Layout of the low 8-byte preamble, shared by every format.
const (
	loFieldPreInts = 0
	loFieldSerVer  = 1
	loFieldFamily  = 2
	loFieldLgK     = 3
	loFieldFiCol   = 4
	loFieldFlags   = 5
	loFieldSeedHi  = 6 // 2-byte seed hash, little-endian, at offset 6-7
)

const (
	serVer              = 1
	compressedFlagMask  = 2 // bit 1 of the flags byte: sketch is always stored compressed
	formatFlagsShift    = 2
	hiFieldNumCoupons   = 0
	hiFieldNumSv        = 1
	hiFieldKxP          = 2
	hiFieldHipAccum     = 3
	hiFieldSvLengthInts = 4
	hiFieldWLengthInts  = 5
)

// hiFieldWordOffset[format][field] gives the word index (4-byte units) of the
// given high field within the preamble, or -1 if that field is not defined
// for this format.
var hiFieldWordOffset = [8][6]int{
	CpcFormatEmptyMerged:             {-1, -1, -1, -1, -1, -1},
	CpcFormatEmptyHip:                {-1, -1, -1, -1, -1, -1},
	CpcFormatSparseHybridMerged:      {2, -1, -1, -1, 3, -1},
	CpcFormatSparseHybridHip:         {2, -1, 3, 5, 7, -1},
	CpcFormatPinnedSlidingMergedNosv: {2, -1, -1, -1, -1, 3},
	CpcFormatPinnedSlidingHipNosv:    {2, -1, 3, 5, -1, 7},
	CpcFormatPinnedSlidingMerged:     {2, 3, -1, -1, 4, 5},
	CpcFormatPinnedSlidingHip:        {2, 3, 4, 6, 8, 9},
}

func getHiFieldOffset(format CpcFormat, field int) (int, error) {
	if int(format) < 0 || int(format) > 7 {
		return 0, fmt.Errorf("illegal format: %d", format)
	}
	w := hiFieldWordOffset[format][field]
	if w < 0 {
		return 0, fieldError(format, field)
	}
	return w, nil
}

func fieldError(format CpcFormat, field int) error {
	return fmt.Errorf("field %d is not defined for format %v", field, format)
}

func checkCapacity(haveBytes, needBytes int) error {
	if haveBytes < needBytes {
		return fmt.Errorf("insufficient capacity: have %d bytes, need %d", haveBytes, needBytes)
	}
	return nil
}

func getPreInts(mem []byte) int      { return int(mem[loFieldPreInts]) }
func getSerVer(mem []byte) int       { return int(mem[loFieldSerVer]) }
func getFamilyId(mem []byte) int     { return int(mem[loFieldFamily]) }
func getLgK(mem []byte) int          { return int(mem[loFieldLgK]) }
func getFiCol(mem []byte) int        { return int(mem[loFieldFiCol]) }
func getFlags(mem []byte) int        { return int(mem[loFieldFlags]) }
func getFormat(mem []byte) CpcFormat { return CpcFormat((getFlags(mem) >> formatFlagsShift) & 0x7) }
func getFormatOrdinal(mem []byte) int {
	return int(getFormat(mem))
}
func getSeedHash(mem []byte) int16 {
	return int16(internal.GetShortLE(mem, loFieldSeedHi))
}
func hasHip(mem []byte) bool    { return getFormatOrdinal(mem)&1 == 1 }
func isCompressed(mem []byte) bool { return getFlags(mem)&compressedFlagMask != 0 }

func checkLoPreamble(mem []byte) error {
	if err := checkCapacity(len(mem), 8); err != nil {
		return err
	}
	format := getFormat(mem)
	if int(format) < 0 || int(format) > 7 {
		return fmt.Errorf("corrupt preamble: illegal format %d", format)
	}
	if getPreInts(mem) != getDefinedPreInts(format) {
		return fmt.Errorf("corrupt preamble: preInts=%d, expected %d for format %v",
			getPreInts(mem), getDefinedPreInts(format), format)
	}
	if getSerVer(mem) != serVer {
		return fmt.Errorf("unsupported serialization version: %d", getSerVer(mem))
	}
	if getFamilyId(mem) != internal.FamilyEnum.CPC.Id {
		return fmt.Errorf("not a CPC sketch: family id=%d", getFamilyId(mem))
	}
	return nil
}

func readInt32(mem []byte, word int) int32 {
	return int32(binary.LittleEndian.Uint32(mem[4*word:]))
}
func writeInt32(mem []byte, word int, v int32) {
	binary.LittleEndian.PutUint32(mem[4*word:], uint32(v))
}
func readUint32(mem []byte, word int) uint32 {
	return binary.LittleEndian.Uint32(mem[4*word:])
}
func writeUint32(mem []byte, word int, v uint32) {
	binary.LittleEndian.PutUint32(mem[4*word:], v)
}
func readFloat64(mem []byte, word int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(mem[4*word:]))
}
func writeFloat64(mem []byte, word int, v float64) {
	binary.LittleEndian.PutUint64(mem[4*word:], math.Float64bits(v))
}

func getNumCoupons(mem []byte) uint64 {
	w, err := getHiFieldOffset(getFormat(mem), hiFieldNumCoupons)
	if err != nil {
		return 0
	}
	return uint64(readUint32(mem, w))
}

func getNumSV(mem []byte) uint64 {
	w, err := getHiFieldOffset(getFormat(mem), hiFieldNumSv)
	if err != nil {
		return 0
	}
	return uint64(readUint32(mem, w))
}

func getKxP(mem []byte) float64 {
	w, err := getHiFieldOffset(getFormat(mem), hiFieldKxP)
	if err != nil {
		return 0
	}
	return readFloat64(mem, w)
}

func getHipAccum(mem []byte) float64 {
	w, err := getHiFieldOffset(getFormat(mem), hiFieldHipAccum)
	if err != nil {
		return 0
	}
	return readFloat64(mem, w)
}

func getSvLengthInts(mem []byte) int {
	w, err := getHiFieldOffset(getFormat(mem), hiFieldSvLengthInts)
	if err != nil {
		return 0
	}
	return int(readInt32(mem, w))
}

func getWLengthInts(mem []byte) int {
	w, err := getHiFieldOffset(getFormat(mem), hiFieldWLengthInts)
	if err != nil {
		return 0
	}
	return int(readInt32(mem, w))
}

func getSvStreamOffset(mem []byte) (int, error) {
	format := getFormat(mem)
	if getPreInts(mem) != getDefinedPreInts(format) {
		return 0, fmt.Errorf("corrupt preamble: preInts does not match format %v", format)
	}
	switch format {
	case CpcFormatSparseHybridMerged, CpcFormatSparseHybridHip:
		return getDefinedPreInts(format), nil
	case CpcFormatPinnedSlidingMerged, CpcFormatPinnedSlidingHip:
		return getDefinedPreInts(format), nil
	default:
		return 0, fmt.Errorf("format %v has no SV stream", format)
	}
}

func getWStreamOffset(mem []byte) (int, error) {
	format := getFormat(mem)
	if getPreInts(mem) != getDefinedPreInts(format) {
		return 0, fmt.Errorf("corrupt preamble: preInts does not match format %v", format)
	}
	switch format {
	case CpcFormatPinnedSlidingMergedNosv, CpcFormatPinnedSlidingHipNosv:
		return getDefinedPreInts(format), nil
	case CpcFormatPinnedSlidingMerged, CpcFormatPinnedSlidingHip:
		off := getDefinedPreInts(format) + getSvLengthInts(mem)
		return off, nil
	default:
		return 0, fmt.Errorf("format %v has no W stream", format)
	}
}

func getSvStream(mem []byte) []int {
	off, err := getSvStreamOffset(mem)
	if err != nil {
		return nil
	}
	n := getSvLengthInts(mem)
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = int(readInt32(mem, off+i))
	}
	return out
}

func getWStream(mem []byte) []int {
	off, err := getWStreamOffset(mem)
	if err != nil {
		return nil
	}
	n := getWLengthInts(mem)
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = int(readInt32(mem, off+i))
	}
	return out
}

func writeLowPreamble(mem []byte, format CpcFormat, lgK, fiCol int, seedHash int16) {
	mem[loFieldPreInts] = byte(getDefinedPreInts(format))
	mem[loFieldSerVer] = byte(serVer)
	mem[loFieldFamily] = byte(internal.FamilyEnum.CPC.Id)
	mem[loFieldLgK] = byte(lgK)
	mem[loFieldFiCol] = byte(fiCol)
	mem[loFieldFlags] = byte((int(format) << formatFlagsShift) | compressedFlagMask)
	internal.PutShortLE(mem, loFieldSeedHi, int(seedHash))
}

func streamAsInt32(stream []int) []int32 {
	out := make([]int32, len(stream))
	for i, v := range stream {
		out[i] = int32(v)
	}
	return out
}

func writeStream(mem []byte, word int, stream []int32) {
	for i, v := range stream {
		writeInt32(mem, word+i, v)
	}
}

func putEmptyMerged(mem []byte, lgK int, seedHash int16) error {
	if err := checkCapacity(len(mem), 8); err != nil {
		return err
	}
	writeLowPreamble(mem, CpcFormatEmptyMerged, lgK, 0, seedHash)
	return nil
}

func putEmptyHip(mem []byte, lgK int, seedHash int16) error {
	if err := checkCapacity(len(mem), 8); err != nil {
		return err
	}
	writeLowPreamble(mem, CpcFormatEmptyHip, lgK, 0, seedHash)
	return nil
}

func putSparseHybridMerged(mem []byte, lgK, numCoupons, svLengthInts int, seedHash int16, csvStream []int) error {
	need := 4 * (getDefinedPreInts(CpcFormatSparseHybridMerged) + svLengthInts)
	if err := checkCapacity(len(mem), need); err != nil {
		return err
	}
	writeLowPreamble(mem, CpcFormatSparseHybridMerged, lgK, 0, seedHash)
	writeUint32(mem, 2, uint32(numCoupons))
	writeInt32(mem, 3, int32(svLengthInts))
	writeStream(mem, getDefinedPreInts(CpcFormatSparseHybridMerged), streamAsInt32(csvStream))
	return nil
}

func putSparseHybridHip(mem []byte, lgK, numCoupons, svLengthInts int, kxp, hipAccum float64, seedHash int16, csvStream []int) error {
	need := 4 * (getDefinedPreInts(CpcFormatSparseHybridHip) + svLengthInts)
	if err := checkCapacity(len(mem), need); err != nil {
		return err
	}
	writeLowPreamble(mem, CpcFormatSparseHybridHip, lgK, 0, seedHash)
	writeUint32(mem, 2, uint32(numCoupons))
	writeFloat64(mem, 3, kxp)
	writeFloat64(mem, 5, hipAccum)
	writeInt32(mem, 7, int32(svLengthInts))
	writeStream(mem, getDefinedPreInts(CpcFormatSparseHybridHip), streamAsInt32(csvStream))
	return nil
}

func putPinnedSlidingMergedNoSv(mem []byte, lgK, fiCol, numCoupons, wLengthInts int, seedHash int16, cwStream []int) error {
	need := 4 * (getDefinedPreInts(CpcFormatPinnedSlidingMergedNosv) + wLengthInts)
	if err := checkCapacity(len(mem), need); err != nil {
		return err
	}
	writeLowPreamble(mem, CpcFormatPinnedSlidingMergedNosv, lgK, fiCol, seedHash)
	writeUint32(mem, 2, uint32(numCoupons))
	writeInt32(mem, 3, int32(wLengthInts))
	writeStream(mem, getDefinedPreInts(CpcFormatPinnedSlidingMergedNosv), streamAsInt32(cwStream))
	return nil
}

func putPinnedSlidingHipNoSv(mem []byte, lgK, fiCol, numCoupons, wLengthInts int, kxp, hipAccum float64, seedHash int16, cwStream []int) error {
	need := 4 * (getDefinedPreInts(CpcFormatPinnedSlidingHipNosv) + wLengthInts)
	if err := checkCapacity(len(mem), need); err != nil {
		return err
	}
	writeLowPreamble(mem, CpcFormatPinnedSlidingHipNosv, lgK, fiCol, seedHash)
	writeUint32(mem, 2, uint32(numCoupons))
	writeFloat64(mem, 3, kxp)
	writeFloat64(mem, 5, hipAccum)
	writeInt32(mem, 7, int32(wLengthInts))
	writeStream(mem, getDefinedPreInts(CpcFormatPinnedSlidingHipNosv), streamAsInt32(cwStream))
	return nil
}

func putPinnedSlidingMerged(mem []byte, lgK, fiCol, numCoupons, numSv, svLengthInts, wLengthInts int, seedHash int16, csvStream, cwStream []int) error {
	need := 4 * (getDefinedPreInts(CpcFormatPinnedSlidingMerged) + svLengthInts + wLengthInts)
	if err := checkCapacity(len(mem), need); err != nil {
		return err
	}
	writeLowPreamble(mem, CpcFormatPinnedSlidingMerged, lgK, fiCol, seedHash)
	writeUint32(mem, 2, uint32(numCoupons))
	writeUint32(mem, 3, uint32(numSv))
	writeInt32(mem, 4, int32(svLengthInts))
	writeInt32(mem, 5, int32(wLengthInts))
	base := getDefinedPreInts(CpcFormatPinnedSlidingMerged)
	writeStream(mem, base, streamAsInt32(csvStream))
	writeStream(mem, base+svLengthInts, streamAsInt32(cwStream))
	if len(csvStream) != svLengthInts || len(cwStream) != wLengthInts {
		return fmt.Errorf("invalid state: stream length does not match declared length")
	}
	return nil
}

func putPinnedSlidingHip(mem []byte, lgK, fiCol, numCoupons, numSv int, kxp, hipAccum float64, svLengthInts, wLengthInts int, seedHash int16, csvStream, cwStream []int) error {
	need := 4 * (getDefinedPreInts(CpcFormatPinnedSlidingHip) + svLengthInts + wLengthInts)
	if err := checkCapacity(len(mem), need); err != nil {
		return err
	}
	writeLowPreamble(mem, CpcFormatPinnedSlidingHip, lgK, fiCol, seedHash)
	writeUint32(mem, 2, uint32(numCoupons))
	writeUint32(mem, 3, uint32(numSv))
	writeFloat64(mem, 4, kxp)
	writeFloat64(mem, 6, hipAccum)
	writeInt32(mem, 8, int32(svLengthInts))
	writeInt32(mem, 9, int32(wLengthInts))
	base := getDefinedPreInts(CpcFormatPinnedSlidingHip)
	writeStream(mem, base, streamAsInt32(csvStream))
	writeStream(mem, base+svLengthInts, streamAsInt32(cwStream))
	return nil
}

// determineCorrectOffset picks the sliding-window offset, in bits, so that the
// expected number of "surprising" entries outside the window stays small.
func determineCorrectOffset(lgK int, numCoupons uint64) int {
	c := int64(numCoupons)
	k := int64(1) << lgK
	tmp := (c << 3) - (19 * k) // 8C - 19K
	if tmp < 0 {
		return 0
	}
	return int(tmp >> (lgK + 3)) // tmp / (8K)
}

func getMaxSerializedBytes(lgK int) (int, error) {
	if err := checkLgK(lgK); err != nil {
		return 0, err
	}
	k := 1 << lgK
	if lgK <= 25 {
		// 1.5 bytes/slot bound, sized for compressed sparse/windowed streams.
		// ToCompactSlice stores pairs and window bytes as plain 32-bit words,
		// so its images of windowed sketches can exceed this value.
		return ((3 * k) >> 1) + 40, nil
	}
	return int(0.6*float64(int64(1)<<lgK)) + 40, nil
}

// CpcSketchToString renders the low-level fields of a serialized CPC sketch
// image for diagnostics. With detail=false only the first 8 preamble bytes
// are decoded, and only the length and the family id are checked; with
// detail=true the whole low preamble is validated first.
func CpcSketchToString(mem []byte, detail bool) (string, error) {
	if detail {
		if err := checkLoPreamble(mem); err != nil {
			return "", err
		}
	} else {
		if err := checkCapacity(len(mem), 8); err != nil {
			return "", err
		}
		if getFamilyId(mem) != internal.FamilyEnum.CPC.Id {
			return "", fmt.Errorf("not a CPC sketch: family id=%d", getFamilyId(mem))
		}
	}
	var b strings.Builder
	format := getFormat(mem)
	fmt.Fprintf(&b, "Format        : %v\n", format)
	fmt.Fprintf(&b, "PreInts       : %d\n", getPreInts(mem))
	fmt.Fprintf(&b, "SerVer        : %d\n", getSerVer(mem))
	fmt.Fprintf(&b, "FamilyID      : %d\n", getFamilyId(mem))
	fmt.Fprintf(&b, "LgK           : %d\n", getLgK(mem))
	fmt.Fprintf(&b, "FiCol         : %d\n", getFiCol(mem))
	fmt.Fprintf(&b, "SeedHash      : %d\n", getSeedHash(mem))
	if !detail {
		return b.String(), nil
	}
	if format != CpcFormatEmptyMerged && format != CpcFormatEmptyHip {
		fmt.Fprintf(&b, "NumCoupons    : %d\n", getNumCoupons(mem))
	}
	if hasHip(mem) {
		fmt.Fprintf(&b, "KxP           : %v\n", getKxP(mem))
		fmt.Fprintf(&b, "HipAccum      : %v\n", getHipAccum(mem))
	}
	if _, err := getSvStreamOffset(mem); err == nil {
		fmt.Fprintf(&b, "SvLengthInts  : %d\n", getSvLengthInts(mem))
	}
	if _, err := getWStreamOffset(mem); err == nil {
		fmt.Fprintf(&b, "WLengthInts   : %d\n", getWLengthInts(mem))
	}
	return b.String(), nil
}
