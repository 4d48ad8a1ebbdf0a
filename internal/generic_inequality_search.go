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

package internal

import (
	"github.com/dsketch-io/gosketch/common"
)

// Inequality selects which one-sided search FindWithInequality performs
// against a sorted slice: the strict/non-strict less-than and
// greater-than variants needed by rank and quantile lookups.
type Inequality int64

const (
	InequalityLT Inequality = iota
	InequalityLE
	InequalityGE
	InequalityGT
)

// FindWithInequality binary-searches a slice sorted ascending by cmp for
// the index satisfying the given Inequality against target, narrowing
// the window to an adjacent pair before resolving the final index. It
// returns -1 when no index in [low, high] satisfies crit.
func FindWithInequality[C comparable](arr []C, low int, high int, target C, crit Inequality, cmp common.CompareFn[C]) int {
	if len(arr) == 0 {
		return -1
	}
	lo := low
	hi := high
	for lo <= hi {
		if hi-lo <= 1 {
			return resolve(arr, lo, hi, target, crit, cmp)
		}
		mid := lo + (hi-lo)/2
		switch compare(arr, mid, mid+1, target, crit, cmp) {
		case -1:
			hi = mid
		case 1:
			lo = mid + 1
		default:
			return getIndex(arr, mid, mid+1, target, crit, cmp)
		}
	}
	return -1
}

// resolve picks the final answer once the search window has narrowed to
// a single index or an adjacent pair (lo, hi == lo+1).
func resolve[C comparable](arr []C, lo int, hi int, target C, crit Inequality, cmp common.CompareFn[C]) int {
	result := 0
	switch crit {
	case InequalityLT:
		if lo == hi {
			if !cmp(target, arr[hi]) && target != arr[hi] {
				result = lo
			} else {
				result = -1
			}
		} else {
			if !cmp(target, arr[hi]) && target != arr[hi] {
				result = hi
			} else if !cmp(target, arr[lo]) && target != arr[lo] {
				result = lo
			} else {
				result = -1
			}
		}
	case InequalityLE:
		if lo == hi {
			if !cmp(target, arr[lo]) {
				result = lo
			} else {
				result = -1
			}
		} else {
			if !cmp(target, arr[hi]) {
				result = hi
			} else if !cmp(target, arr[lo]) {
				result = lo
			} else {
				result = -1
			}
		}

	case InequalityGE:
		if lo == hi {
			if cmp(target, arr[lo]) || target == arr[lo] {
				result = lo
			} else {
				result = -1
			}
		} else {
			if cmp(target, arr[lo]) || target == arr[lo] {
				result = lo
			} else if cmp(target, arr[hi]) || target == arr[hi] {
				result = hi
			} else {
				result = -1
			}
		}
	case InequalityGT:
		if lo == hi {
			if cmp(target, arr[lo]) {
				result = lo
			} else {
				result = -1
			}
		} else {
			if cmp(target, arr[lo]) {
				result = lo
			} else if cmp(target, arr[hi]) {
				result = hi
			} else {
				result = -1
			}
		}
	default:
		panic("invalid inequality")
	}

	return result
}

// compare reports which side of the (a, b) window target falls on: -1 if
// target belongs at or before a, 1 if it belongs at or after b, 0 if the
// window must be narrowed further.
func compare[C comparable](arr []C, a int, b int, target C, crit Inequality, cmp common.CompareFn[C]) int {
	result := 0
	switch crit {
	case InequalityLT, InequalityGE:
		if cmp(target, arr[a]) || arr[a] == target {
			result = -1
		} else if cmp(arr[b], target) {
			result = 1
		} else {
			result = 0
		}
	case InequalityLE, InequalityGT:
		if cmp(target, arr[a]) {
			result = -1
		} else if cmp(arr[b], target) || arr[b] == target {
			result = 1
		} else {
			result = 0
		}
	default:
		panic("invalid inequality")
	}
	return result
}

// getIndex picks a or b as the answer once compare has determined the
// window straddles the target exactly at this adjacent pair.
func getIndex[C comparable](arr []C, a int, b int, target C, crit Inequality, cmp common.CompareFn[C]) int {
	switch crit {
	case InequalityLT, InequalityLE:
		return a
	case InequalityGE, InequalityGT:
		return b
	default:
		panic("invalid inequality")
	}
}
