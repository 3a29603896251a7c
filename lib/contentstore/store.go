// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package contentstore

import (
	"cmp"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/nxpack/nxpack/lib/clock"
	"github.com/nxpack/nxpack/lib/codec"
	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/forwarder"
	"github.com/nxpack/nxpack/lib/fsys"
	"github.com/nxpack/nxpack/lib/nca"
)

const (
	placeholderDir = "placeholder"
	registeredDir  = "registered"
	metaDir        = "meta"
	appsDir        = "apps"

	archiveExtension = ".nca"
	recordExtension  = ".cbor"
)

// Registrar receives a package's archives and records. The installer
// drives it in order: CreatePlaceholder, WritePlaceholder until the
// archive is complete, Register, then SetContentMeta,
// PushApplicationRecord and Commit.
type Registrar interface {
	// CreatePlaceholder reserves storage for a content of size bytes.
	CreatePlaceholder(id nca.ContentID, size int64) error

	// WritePlaceholder writes data at offset into a placeholder.
	// Calls for one id arrive from one goroutine.
	WritePlaceholder(id nca.ContentID, offset int64, data []byte) error

	// Register turns a complete placeholder into registered content.
	Register(info forwarder.ContentInfo) error

	// SetContentMeta stages the content meta record for key.
	SetContentMeta(key forwarder.ContentMetaKey, contents []forwarder.ContentInfo) error

	// PushApplicationRecord adds or replaces an application record.
	PushApplicationRecord(record forwarder.ApplicationRecord) error

	// Commit makes staged content meta records durable.
	Commit() error

	// DeleteContent removes a placeholder or registered content.
	// Deleting content that does not exist is not an error.
	DeleteContent(id nca.ContentID) error
}

// Blob is the record stored next to every registered archive.
type Blob struct {
	ID           nca.ContentID        `cbor:"id"`
	Type         forwarder.RecordType `cbor:"type"`
	Size         int64                `cbor:"size"`
	Digest       Hash                 `cbor:"digest"`
	RegisteredAt int64                `cbor:"registered_at"`
}

// ContentMetaRecord is the stored form of a content meta.
type ContentMetaRecord struct {
	Key      forwarder.ContentMetaKey `cbor:"key"`
	Contents []forwarder.ContentInfo  `cbor:"contents"`
}

// Application is one installed application as listed by [Store.List].
type Application struct {
	Record forwarder.ApplicationRecord
	Metas  []ContentMetaRecord
}

// Store is a directory-backed [Registrar].
type Store struct {
	root       string
	filesystem fsys.FS
	clock      clock.Clock
	logger     *slog.Logger

	mu           sync.Mutex
	placeholders map[nca.ContentID]fsys.File
	staged       map[forwarder.ContentMetaKey][]forwarder.ContentInfo
}

// Open creates or opens a store rooted at root. A nil logger means
// slog.Default().
func Open(root string, logger *slog.Logger) (*Store, error) {
	for _, dir := range []string{placeholderDir, registeredDir, metaDir, appsDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fault.Wrap(fault.IO, fmt.Errorf("creating content store directory: %w", err))
		}
	}
	return &Store{
		root:         root,
		filesystem:   fsys.OS{},
		clock:        clock.Real(),
		logger:       cmp.Or(logger, slog.Default()),
		placeholders: make(map[nca.ContentID]fsys.File),
		staged:       make(map[forwarder.ContentMetaKey][]forwarder.ContentInfo),
	}, nil
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

func (s *Store) placeholderPath(id nca.ContentID) string {
	return filepath.Join(s.root, placeholderDir, id.String()+archiveExtension)
}

// ContentPath returns where registered content id is stored.
func (s *Store) ContentPath(id nca.ContentID) string {
	return filepath.Join(s.root, registeredDir, id.String()+archiveExtension)
}

func (s *Store) blobPath(id nca.ContentID) string {
	return filepath.Join(s.root, registeredDir, id.String()+recordExtension)
}

func (s *Store) metaPath(key forwarder.ContentMetaKey) string {
	return filepath.Join(s.root, metaDir, key.String()+recordExtension)
}

func (s *Store) appPath(applicationID uint64) string {
	return filepath.Join(s.root, appsDir, forwarder.FormatTitleID(applicationID)+recordExtension)
}

// FreeSpace reports the space available to new placeholders.
func (s *Store) FreeSpace() (int64, error) {
	return s.filesystem.FreeSpace(s.root)
}

// CreatePlaceholder opens a fresh placeholder file and reserves size
// bytes for it.
func (s *Store) CreatePlaceholder(id nca.ContentID, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.placeholders[id]; exists {
		return fault.New(fault.Registration, "placeholder %s is already open", id)
	}
	file, err := s.filesystem.OpenFile(s.placeholderPath(id), fsys.ModeWrite)
	if err != nil {
		return fault.New(fault.Registration, "creating placeholder %s: %w", id, err)
	}
	if err := file.SetSize(size); err != nil {
		file.Close()
		return fault.New(fault.Registration, "reserving %d bytes for placeholder %s: %w", size, id, err)
	}
	s.placeholders[id] = file
	return nil
}

// WritePlaceholder writes into an open placeholder.
func (s *Store) WritePlaceholder(id nca.ContentID, offset int64, data []byte) error {
	s.mu.Lock()
	file, ok := s.placeholders[id]
	s.mu.Unlock()
	if !ok {
		return fault.New(fault.Registration, "placeholder %s is not open", id)
	}
	if _, err := file.WriteAt(data, offset); err != nil {
		return fault.New(fault.Registration, "writing placeholder %s at %d: %w", id, offset, err)
	}
	return nil
}

// Register closes the placeholder for info.ID, checks its size and
// SHA-256 against info, and moves it into registered storage with a
// blob record. A digest mismatch is ChecksumMismatch and leaves the
// placeholder in place.
func (s *Store) Register(info forwarder.ContentInfo) error {
	s.mu.Lock()
	file, ok := s.placeholders[info.ID]
	delete(s.placeholders, info.ID)
	s.mu.Unlock()
	if !ok {
		return fault.New(fault.Registration, "registering %s: no open placeholder", info.ID)
	}

	size, err := file.GetSize()
	if err != nil {
		file.Close()
		return fault.New(fault.Registration, "registering %s: %w", info.ID, err)
	}
	if size != info.Size {
		file.Close()
		return fault.New(fault.Registration, "registering %s: placeholder holds %d bytes, want %d", info.ID, size, info.Size)
	}
	sha := sha256.New()
	blob := newBlobHasher()
	if _, err := io.Copy(io.MultiWriter(sha, blob), io.NewSectionReader(file, 0, size)); err != nil {
		file.Close()
		return fault.New(fault.Registration, "reading placeholder %s: %w", info.ID, err)
	}
	if err := file.Close(); err != nil {
		return fault.New(fault.Registration, "closing placeholder %s: %w", info.ID, err)
	}
	if [sha256.Size]byte(sha.Sum(nil)) != info.Digest {
		return fault.New(fault.ChecksumMismatch, "registering %s: placeholder digest does not match the content record", info.ID)
	}

	if err := s.filesystem.RenameFile(s.placeholderPath(info.ID), s.ContentPath(info.ID)); err != nil {
		return fault.New(fault.Registration, "registering %s: %w", info.ID, err)
	}
	record := Blob{
		ID:           info.ID,
		Type:         info.Type,
		Size:         size,
		Digest:       sumHash(blob),
		RegisteredAt: s.clock.Now().Unix(),
	}
	if err := writeRecord(s.blobPath(info.ID), &record); err != nil {
		return fault.New(fault.Registration, "recording %s: %w", info.ID, err)
	}
	s.logger.Debug("registered content", "content_id", info.ID.String(), "type", info.Type.String(), "digest", FormatHash(record.Digest))
	return nil
}

// SetContentMeta stages a content meta record until Commit.
func (s *Store) SetContentMeta(key forwarder.ContentMetaKey, contents []forwarder.ContentInfo) error {
	for _, content := range contents {
		if !s.filesystem.FileExists(s.ContentPath(content.ID)) {
			return fault.New(fault.Registration, "content meta %s references unregistered content %s", key, content.ID)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[key] = slices.Clone(contents)
	return nil
}

// PushApplicationRecord writes the application record. An existing
// record for the same application is merged: its content meta keys are
// kept alongside the new ones.
func (s *Store) PushApplicationRecord(record forwarder.ApplicationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.appPath(record.ApplicationID)
	var existing forwarder.ApplicationRecord
	switch err := readRecord(path, &existing); {
	case err == nil:
		for _, key := range existing.Keys {
			if !slices.Contains(record.Keys, key) {
				record.Keys = append(record.Keys, key)
			}
		}
	case !errors.Is(err, fs.ErrNotExist):
		return fault.New(fault.Registration, "reading application record %s: %w", forwarder.FormatTitleID(record.ApplicationID), err)
	}
	if err := writeRecord(path, &record); err != nil {
		return fault.New(fault.Registration, "writing application record %s: %w", forwarder.FormatTitleID(record.ApplicationID), err)
	}
	return nil
}

// Commit writes every staged content meta record.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, contents := range s.staged {
		if err := writeRecord(s.metaPath(key), &ContentMetaRecord{Key: key, Contents: contents}); err != nil {
			return fault.New(fault.Registration, "committing content meta %s: %w", key, err)
		}
		delete(s.staged, key)
	}
	return nil
}

// DeleteContent removes a placeholder and any registered copy of id.
func (s *Store) DeleteContent(id nca.ContentID) error {
	s.mu.Lock()
	if file, ok := s.placeholders[id]; ok {
		file.Close()
		delete(s.placeholders, id)
	}
	s.mu.Unlock()
	for _, path := range []string{s.placeholderPath(id), s.ContentPath(id), s.blobPath(id)} {
		if err := s.filesystem.DeleteFile(path); err != nil {
			return fault.New(fault.Registration, "deleting content %s: %w", id, err)
		}
	}
	return nil
}

// List returns every application record with its content meta
// records, ordered by application id.
func (s *Store) List() ([]Application, error) {
	names, err := recordNames(filepath.Join(s.root, appsDir))
	if err != nil {
		return nil, err
	}
	metas, err := s.contentMetas()
	if err != nil {
		return nil, err
	}
	var applications []Application
	for _, name := range names {
		var record forwarder.ApplicationRecord
		if err := readRecord(filepath.Join(s.root, appsDir, name), &record); err != nil {
			return nil, fmt.Errorf("reading application record %s: %w", name, err)
		}
		application := Application{Record: record}
		for _, key := range record.Keys {
			if meta, ok := metas[key]; ok {
				application.Metas = append(application.Metas, meta)
			}
		}
		applications = append(applications, application)
	}
	slices.SortFunc(applications, func(a, b Application) int {
		return cmp.Compare(a.Record.ApplicationID, b.Record.ApplicationID)
	})
	return applications, nil
}

func (s *Store) contentMetas() (map[forwarder.ContentMetaKey]ContentMetaRecord, error) {
	names, err := recordNames(filepath.Join(s.root, metaDir))
	if err != nil {
		return nil, err
	}
	metas := make(map[forwarder.ContentMetaKey]ContentMetaRecord, len(names))
	for _, name := range names {
		var record ContentMetaRecord
		if err := readRecord(filepath.Join(s.root, metaDir, name), &record); err != nil {
			return nil, fmt.Errorf("reading content meta %s: %w", name, err)
		}
		metas[record.Key] = record
	}
	return metas, nil
}

// Problem is one registered blob that failed verification.
type Problem struct {
	ID  nca.ContentID
	Err error
}

// Verify rehashes every registered blob and reports those whose
// digest, size or file no longer match their blob record.
func (s *Store) Verify() ([]Problem, error) {
	names, err := recordNames(filepath.Join(s.root, registeredDir))
	if err != nil {
		return nil, err
	}
	var problems []Problem
	for _, name := range names {
		var blob Blob
		if err := readRecord(filepath.Join(s.root, registeredDir, name), &blob); err != nil {
			return nil, fmt.Errorf("reading blob record %s: %w", name, err)
		}
		if err := s.verifyBlob(blob); err != nil {
			problems = append(problems, Problem{ID: blob.ID, Err: err})
		}
	}
	return problems, nil
}

func (s *Store) verifyBlob(blob Blob) error {
	file, err := s.filesystem.OpenFile(s.ContentPath(blob.ID), fsys.ModeRead)
	if err != nil {
		return err
	}
	defer file.Close()
	size, err := file.GetSize()
	if err != nil {
		return err
	}
	if size != blob.Size {
		return fault.New(fault.ChecksumMismatch, "%s is %d bytes, recorded %d", blob.ID, size, blob.Size)
	}
	hasher := newBlobHasher()
	if _, err := io.Copy(hasher, io.NewSectionReader(file, 0, size)); err != nil {
		return fault.Wrap(fault.IO, err)
	}
	if digest := sumHash(hasher); digest != blob.Digest {
		return fault.New(fault.ChecksumMismatch, "%s digest %s, recorded %s", blob.ID, FormatHash(digest), FormatHash(blob.Digest))
	}
	return nil
}

// Remove deletes an application: its record, its content meta records
// and every content they reference.
func (s *Store) Remove(applicationID uint64) error {
	path := s.appPath(applicationID)
	var record forwarder.ApplicationRecord
	if err := readRecord(path, &record); err != nil {
		return fault.New(fault.Registration, "application %s: %w", forwarder.FormatTitleID(applicationID), err)
	}
	metas, err := s.contentMetas()
	if err != nil {
		return err
	}
	for _, key := range record.Keys {
		for _, content := range metas[key].Contents {
			if err := s.DeleteContent(content.ID); err != nil {
				return err
			}
		}
		if err := s.filesystem.DeleteFile(s.metaPath(key)); err != nil {
			return fault.New(fault.Registration, "deleting content meta %s: %w", key, err)
		}
	}
	if err := s.filesystem.DeleteFile(path); err != nil {
		return fault.New(fault.Registration, "deleting application record: %w", err)
	}
	s.logger.Info("removed application", "application_id", forwarder.FormatTitleID(applicationID), "content_meta_keys", len(record.Keys))
	return nil
}

// ParseApplicationID parses a 16-digit hex application id, with or
// without a 0x prefix.
func ParseApplicationID(text string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(text), "0x"), 16, 64)
	if err != nil {
		return 0, fault.New(fault.InvalidArgument, "application id %q: %w", text, err)
	}
	return id, nil
}

// recordNames lists the .cbor files in dir, sorted.
func recordNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fault.Wrap(fault.IO, fmt.Errorf("listing %s: %w", dir, err))
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), recordExtension) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// writeRecord atomically replaces path with the CBOR encoding of v.
func writeRecord(path string, v any) error {
	data, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	temp, err := os.CreateTemp(filepath.Dir(path), ".record-*")
	if err != nil {
		return fault.Wrap(fault.IO, fmt.Errorf("creating temp record: %w", err))
	}
	tempPath := temp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tempPath)
		}
	}()
	if _, err := temp.Write(data); err != nil {
		temp.Close()
		return fault.Wrap(fault.IO, fmt.Errorf("writing record: %w", err))
	}
	if err := temp.Close(); err != nil {
		return fault.Wrap(fault.IO, fmt.Errorf("closing temp record: %w", err))
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fault.Wrap(fault.IO, fmt.Errorf("renaming record to %s: %w", path, err))
	}
	success = true
	return nil
}

// readRecord decodes the CBOR record at path into v. A missing record
// wraps fs.ErrNotExist.
func readRecord(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fault.Wrap(fault.IO, err)
	}
	if err := codec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
