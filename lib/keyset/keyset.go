// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package keyset

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"filippo.io/age"

	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/nca"
)

// Key names.
const (
	HeaderKeyName        = "header_key"
	keyAreaKeyNameFormat = "key_area_key_application_%02x"
)

// EncryptedSuffix marks key files stored age-encrypted.
const EncryptedSuffix = ".age"

// KeySet is a parsed key file. Names are lowercase.
type KeySet struct {
	keys map[string][]byte
}

// New returns an empty key set.
func New() *KeySet {
	return &KeySet{keys: make(map[string][]byte)}
}

// Parse reads "name = hex" lines. Blank lines and comments are
// skipped; a malformed line is an error naming its line number.
func Parse(reader io.Reader) (*KeySet, error) {
	set := New()
	scanner := bufio.NewScanner(reader)
	for lineNumber := 1; scanner.Scan(); lineNumber++ {
		line := scanner.Text()
		if cut := strings.IndexAny(line, "#;"); cut >= 0 {
			line = line[:cut]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fault.New(fault.KeyDerivation, "key file line %d: missing '='", lineNumber)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return nil, fault.New(fault.KeyDerivation, "key file line %d: empty key name", lineNumber)
		}
		decoded, err := hex.DecodeString(strings.TrimSpace(value))
		if err != nil {
			return nil, fault.New(fault.KeyDerivation, "key file line %d (%s): %v", lineNumber, name, err)
		}
		set.keys[name] = decoded
	}
	if err := scanner.Err(); err != nil {
		return nil, fault.Wrap(fault.KeyDerivation, fmt.Errorf("reading key file: %w", err))
	}
	return set, nil
}

// Load reads a key file. Paths ending in ".age" are decrypted with the
// identities in identityPath, which is otherwise ignored.
func Load(path, identityPath string) (*KeySet, error) {
	if !strings.HasSuffix(path, EncryptedSuffix) {
		return LoadWithIdentities(path, nil)
	}
	if identityPath == "" {
		return nil, fault.New(fault.KeyDerivation, "%s is age-encrypted but no identity file was given", path)
	}
	identities, err := ReadIdentities(identityPath)
	if err != nil {
		return nil, err
	}
	return LoadWithIdentities(path, identities)
}

// LoadWithIdentities reads a key file, decrypting it with identities
// when its name ends in ".age".
func LoadWithIdentities(path string, identities []age.Identity) (*KeySet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(fault.KeyDerivation, fmt.Errorf("opening key file: %w", err))
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, EncryptedSuffix) {
		if len(identities) == 0 {
			return nil, fault.New(fault.KeyDerivation, "%s is age-encrypted but no identity was given", path)
		}
		reader, err = age.Decrypt(file, identities...)
		if err != nil {
			return nil, fault.Wrap(fault.KeyDerivation, fmt.Errorf("decrypting %s: %w", path, err))
		}
	}

	set, err := Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// ReadIdentities parses an age identity file (one AGE-SECRET-KEY-1...
// per line, comments allowed).
func ReadIdentities(path string) ([]age.Identity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(fault.KeyDerivation, fmt.Errorf("opening identity file: %w", err))
	}
	defer file.Close()

	identities, err := age.ParseIdentities(file)
	if err != nil {
		return nil, fault.Wrap(fault.KeyDerivation, fmt.Errorf("parsing identity file %s: %w", path, err))
	}
	return identities, nil
}

// PassphraseIdentity returns an identity for key files encrypted with
// "age --passphrase".
func PassphraseIdentity(passphrase string) ([]age.Identity, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fault.Wrap(fault.KeyDerivation, fmt.Errorf("creating passphrase identity: %w", err))
	}
	return []age.Identity{identity}, nil
}

// Set stores a key, replacing any previous value.
func (k *KeySet) Set(name string, value []byte) {
	k.keys[strings.ToLower(name)] = slices.Clone(value)
}

// Get returns a copy of the named key.
func (k *KeySet) Get(name string) ([]byte, bool) {
	value, ok := k.keys[strings.ToLower(name)]
	return slices.Clone(value), ok
}

// Names returns the key names in sorted order.
func (k *KeySet) Names() []string {
	return slices.Sorted(maps.Keys(k.keys))
}

// HeaderKey returns the archive header key.
func (k *KeySet) HeaderKey() ([nca.HeaderKeySize]byte, error) {
	var key [nca.HeaderKeySize]byte
	if err := k.fixed(HeaderKeyName, key[:]); err != nil {
		return key, err
	}
	return key, nil
}

// KeyAreaKey returns the application key-area key for an archive key
// generation. Generations 0 and 1 both use master key revision 0;
// generation N above that uses revision N-1.
func (k *KeySet) KeyAreaKey(generation uint8) ([0x10]byte, error) {
	var key [0x10]byte
	if err := k.fixed(KeyAreaKeyName(generation), key[:]); err != nil {
		return key, err
	}
	return key, nil
}

// KeyAreaKeyName returns the key file name holding the key-area key
// for generation.
func KeyAreaKeyName(generation uint8) string {
	return fmt.Sprintf(keyAreaKeyNameFormat, MasterKeyRevision(generation))
}

// MasterKeyRevision maps an archive key generation to the master key
// revision that derives its keys.
func MasterKeyRevision(generation uint8) uint8 {
	if generation == 0 {
		return 0
	}
	return generation - 1
}

// ArchiveKeys returns the keys a content archive builder needs for
// generation.
func (k *KeySet) ArchiveKeys(generation uint8) (nca.Keys, error) {
	header, err := k.HeaderKey()
	if err != nil {
		return nca.Keys{}, err
	}
	keyArea, err := k.KeyAreaKey(generation)
	if err != nil {
		return nca.Keys{}, err
	}
	return nca.Keys{Header: header, KeyArea: keyArea}, nil
}

func (k *KeySet) fixed(name string, destination []byte) error {
	value, ok := k.keys[name]
	if !ok {
		return fault.New(fault.KeyDerivation, "key %s not found in key set", name)
	}
	if len(value) != len(destination) {
		return fault.New(fault.KeyDerivation, "key %s is %d bytes, want %d", name, len(value), len(destination))
	}
	copy(destination, value)
	return nil
}
