// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
)

// digestID stands in for record ids that marshal as hex text.
type digestID [4]byte

func (id digestID) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(id[:])), nil
}

func (id *digestID) UnmarshalText(text []byte) error {
	if len(text) != 2*len(id) {
		return fmt.Errorf("id %q has the wrong length", text)
	}
	_, err := hex.Decode(id[:], text)
	return err
}

type sampleRecord struct {
	ID     digestID `cbor:"id"`
	Size   int64    `cbor:"size"`
	Digest [8]byte  `cbor:"digest"`
	Name   string   `cbor:"name,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRecord{
		ID:     digestID{0xDE, 0xAD, 0xBE, 0xEF},
		Size:   0x10_0000_0000,
		Digest: [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
		Name:   "program",
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	first, err := Marshal(map[string]int{"zeta": 1, "alpha": 2, "mid": 3})
	if err != nil {
		t.Fatal(err)
	}
	for range 20 {
		again, err := Marshal(map[string]int{"mid": 3, "alpha": 2, "zeta": 1})
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encodings differ: %x vs %x", first, again)
		}
	}
}

func TestTextMarshalerEncodesAsText(t *testing.T) {
	data, err := Marshal(sampleRecord{ID: digestID{0x01, 0x23, 0x45, 0x67}})
	if err != nil {
		t.Fatal(err)
	}
	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(notation, `"01234567"`) {
		t.Errorf("notation %q does not contain the id as text", notation)
	}
	if strings.Contains(notation, `"name"`) {
		t.Errorf("notation %q contains an omitted empty field", notation)
	}
}

func TestUnknownFieldsIgnored(t *testing.T) {
	data, err := Marshal(map[string]any{"size": 12, "added_later": true})
	if err != nil {
		t.Fatal(err)
	}
	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Size != 12 {
		t.Errorf("size = %d, want 12", decoded.Size)
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	var decoded sampleRecord
	if err := Unmarshal([]byte{0xFF, 0xFF}, &decoded); err == nil {
		t.Error("Unmarshal accepted invalid CBOR")
	}
	data, _ := Marshal(map[string]string{"id": "nothex!!"})
	if err := Unmarshal(data, &decoded); err == nil {
		t.Error("Unmarshal accepted a malformed text id")
	}
}

func TestDecodeAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"outer": map[string]any{"inner": 1}})
	if err != nil {
		t.Fatal(err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded %T, want map[string]any", decoded)
	}
	if _, ok := outer["outer"].(map[string]any); !ok {
		t.Fatalf("nested value %T, want map[string]any", outer["outer"])
	}
}
