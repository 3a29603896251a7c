// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

// PatternByte is the byte PatternBytes stores at offset. The period is
// prime so that chunk-sized shifts show up as mismatches.
func PatternByte(offset int64) byte {
	return byte(offset % 251)
}

// PatternBytes returns size bytes where each byte is a function of its
// offset. Pipeline tests compare sink contents against it to detect
// reordered, dropped or duplicated chunks.
func PatternBytes(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = PatternByte(int64(i))
	}
	return data
}

// FirstPatternMismatch returns the first offset in data that does not
// hold PatternByte, or -1.
func FirstPatternMismatch(data []byte) int64 {
	for i, b := range data {
		if b != PatternByte(int64(i)) {
			return int64(i)
		}
	}
	return -1
}
