// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/fsys"
	"github.com/nxpack/nxpack/lib/testutil"
)

func TestCopyFile(t *testing.T) {
	memory := fsys.NewMemory()
	source := testutil.PatternBytes(6*testChunk + 9)
	if err := memory.WriteFile("/in/source.bin", source); err != nil {
		t.Fatal(err)
	}
	if err := memory.CreateDirectoryRecursively("/out"); err != nil {
		t.Fatal(err)
	}

	var updates int
	progress := ContextProgress{Context: context.Background(), OnUpdate: func(current, total int64) { updates++ }}
	err := CopyFile(context.Background(), memory, progress, "/in/source.bin", "/out/copy.bin", Options{ChunkSize: testChunk})
	if err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	copied, err := memory.ReadFile("/out/copy.bin")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(copied, source) {
		t.Fatal("copy differs from source")
	}
	if memory.FileExists("/out/copy.bin" + PartialSuffix) {
		t.Error("partial file left behind")
	}
	if updates == 0 {
		t.Error("no progress updates")
	}
}

func TestCopyFileDecompresses(t *testing.T) {
	memory := fsys.NewMemory()
	original := bytes.Repeat(testutil.PatternBytes(3000), 30)
	encoder, _ := Encoder(CodecZstd)
	compressed, err := runCodec(t, encoder, original, ModeMultiThreaded)
	if err != nil {
		t.Fatal(err)
	}
	memory.WriteFile("/data.zst", compressed)

	decoder, _ := Decoder(CodecZstd)
	if err := CopyFile(context.Background(), memory, nil, "/data.zst", "/data", Options{ChunkSize: testChunk, Transform: decoder}); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	got, _ := memory.ReadFile("/data")
	if !bytes.Equal(got, original) {
		t.Fatal("decompressed copy differs")
	}
}

func TestCopyFileDeletesPartialOnCancel(t *testing.T) {
	memory := fsys.NewMemory()
	memory.WriteFile("/big.bin", testutil.PatternBytes(100*testChunk))

	progress := &exitAfter{limit: 2}
	err := CopyFile(context.Background(), memory, progress, "/big.bin", "/copy.bin", Options{ChunkSize: testChunk})
	if !errors.Is(err, fault.Cancelled) {
		t.Fatalf("CopyFile error = %v, want Cancelled", err)
	}
	if memory.FileExists("/copy.bin") || memory.FileExists("/copy.bin"+PartialSuffix) {
		t.Fatalf("files left after cancelled copy: %v", memory.Files("/"))
	}
}

func TestCopyFileChecksSpace(t *testing.T) {
	memory := fsys.NewMemory()
	memory.Capacity = 10 * testChunk
	memory.WriteFile("/source.bin", testutil.PatternBytes(6*testChunk))

	err := CopyFile(context.Background(), memory, nil, "/source.bin", "/copy.bin", Options{ChunkSize: testChunk})
	if !errors.Is(err, fsys.ErrNoSpace) {
		t.Fatalf("CopyFile error = %v, want ErrNoSpace", err)
	}
	if memory.FileExists("/copy.bin" + PartialSuffix) {
		t.Error("partial file created despite failed space check")
	}
}
