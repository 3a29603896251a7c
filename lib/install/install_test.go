// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/nxpack/nxpack/lib/contentstore"
	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/forwarder"
	"github.com/nxpack/nxpack/lib/fsys"
	"github.com/nxpack/nxpack/lib/nca"
	"github.com/nxpack/nxpack/lib/testutil"
	"github.com/nxpack/nxpack/lib/transfer"
)

func testPackage() *forwarder.Package {
	ids := forwarder.TitleIDs("/switch/app.nro", "--raw")
	program := testutil.PatternBytes(3*transfer.SmallChunkSize + 0x200)
	control := testutil.PatternBytes(0x8000)
	control[0] = 0xC0
	meta := testutil.PatternBytes(0x1000)
	meta[0] = 0x3E
	key := forwarder.ContentMetaKey{ID: ids.Application, Type: forwarder.MetaApplication}
	return &forwarder.Package{
		Program: program,
		Control: control,
		Meta:    meta,
		IDs:     ids,
		Records: forwarder.Records{
			Key: key,
			Contents: []forwarder.ContentInfo{
				forwarder.InfoOf(nca.ContentProgram, program),
				forwarder.InfoOf(nca.ContentControl, control),
				forwarder.InfoOf(nca.ContentMeta, meta),
			},
			Application: forwarder.ApplicationRecord{
				ApplicationID: ids.Application,
				Name:          "app",
				Keys:          []forwarder.ContentMetaKey{key},
			},
		},
	}
}

// recorder is an in-memory Registrar that logs its calls.
type recorder struct {
	mu           sync.Mutex
	calls        []string
	placeholders map[nca.ContentID][]byte
	registered   map[nca.ContentID][]byte
	failOn       string
	free         int64
}

func newRecorder() *recorder {
	return &recorder{
		placeholders: make(map[nca.ContentID][]byte),
		registered:   make(map[nca.ContentID][]byte),
		free:         -1,
	}
}

func (r *recorder) record(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 || r.calls[len(r.calls)-1] != call {
		r.calls = append(r.calls, call)
	}
	if call == r.failOn {
		return errors.New(call + " refused")
	}
	return nil
}

func (r *recorder) CreatePlaceholder(id nca.ContentID, size int64) error {
	if err := r.record("create"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placeholders[id] = make([]byte, size)
	return nil
}

func (r *recorder) WritePlaceholder(id nca.ContentID, offset int64, data []byte) error {
	if err := r.record("write"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copy(r.placeholders[id][offset:], data)
	return nil
}

func (r *recorder) Register(info forwarder.ContentInfo) error {
	if err := r.record("register"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered[info.ID] = r.placeholders[info.ID]
	delete(r.placeholders, info.ID)
	return nil
}

func (r *recorder) SetContentMeta(forwarder.ContentMetaKey, []forwarder.ContentInfo) error {
	return r.record("meta")
}

func (r *recorder) PushApplicationRecord(forwarder.ApplicationRecord) error {
	return r.record("application")
}

func (r *recorder) Commit() error { return r.record("commit") }

func (r *recorder) DeleteContent(id nca.ContentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.placeholders, id)
	delete(r.registered, id)
	return nil
}

// spaceRecorder adds free-space reporting to recorder.
type spaceRecorder struct {
	*recorder
}

func (s spaceRecorder) FreeSpace() (int64, error) { return s.free, nil }

type progressLog struct {
	mu      sync.Mutex
	current []int64
	total   int64
}

func (p *progressLog) ShouldExit() bool      { return false }
func (p *progressLog) Done() <-chan struct{} { return nil }

func (p *progressLog) UpdateTransfer(current, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = append(p.current, current)
	p.total = total
}

func TestInstallOrderAndContent(t *testing.T) {
	pkg := testPackage()
	registrar := newRecorder()
	progress := &progressLog{}
	options := Options{Transfer: transfer.Options{ChunkSize: transfer.SmallChunkSize}}

	if err := Install(context.Background(), registrar, pkg, progress, options); err != nil {
		t.Fatalf("Install: %v", err)
	}

	want := []string{
		"create", "write", "register",
		"create", "write", "register",
		"create", "write", "register",
		"meta", "application", "commit",
	}
	if !slices.Equal(registrar.calls, want) {
		t.Fatalf("calls = %v\nwant %v", registrar.calls, want)
	}
	for _, archive := range pkg.Archives() {
		if !slices.Equal(registrar.registered[archive.Info.ID], archive.Data) {
			t.Errorf("%s content differs after install", archive.Info.Type)
		}
	}

	if progress.total != pkg.Size() {
		t.Errorf("progress total = %d, want %d", progress.total, pkg.Size())
	}
	if !slices.IsSorted(progress.current) || progress.current[len(progress.current)-1] != pkg.Size() {
		t.Errorf("progress = %v, want non-decreasing up to %d", progress.current, pkg.Size())
	}
}

func TestInstallIntoContentStore(t *testing.T) {
	store, err := contentstore.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	pkg := testPackage()
	if err := Install(context.Background(), store, pkg, transfer.NopProgress{}, Options{}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	applications, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(applications) != 1 || applications[0].Record.ApplicationID != pkg.IDs.Application {
		t.Fatalf("applications = %+v", applications)
	}
	if len(applications[0].Metas) != 1 || len(applications[0].Metas[0].Contents) != 3 {
		t.Fatalf("content meta = %+v", applications[0].Metas)
	}
	if problems, err := store.Verify(); err != nil || len(problems) != 0 {
		t.Fatalf("Verify = %v, %v", problems, err)
	}
}

func TestInstallClassifiesRegistrarFailures(t *testing.T) {
	for _, step := range []string{"create", "write", "register", "meta", "application", "commit"} {
		registrar := newRecorder()
		registrar.failOn = step
		err := Install(context.Background(), registrar, testPackage(), transfer.NopProgress{}, Options{})
		if fault.KindOf(err) != fault.Registration {
			t.Errorf("failing %s: error %v has kind %v, want registration", step, err, fault.KindOf(err))
		}
	}
}

func TestInstallCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	registrar := newRecorder()
	err := Install(ctx, registrar, testPackage(), transfer.ContextProgress{Context: ctx}, Options{})
	if !errors.Is(err, fault.Cancelled) {
		t.Fatalf("Install error = %v, want cancelled", err)
	}
	if slices.Contains(registrar.calls, "commit") {
		t.Fatal("cancelled install committed")
	}
}

func TestInstallChecksFreeSpace(t *testing.T) {
	registrar := spaceRecorder{newRecorder()}
	registrar.free = 0x1000
	err := Install(context.Background(), registrar, testPackage(), transfer.NopProgress{}, Options{})
	if !errors.Is(err, fsys.ErrNoSpace) {
		t.Fatalf("Install error = %v, want no space", err)
	}
	if len(registrar.calls) != 0 {
		t.Fatalf("registrar was called: %v", registrar.calls)
	}
}

func TestInstallRejectsTransforms(t *testing.T) {
	decode, err := transfer.Decoder(transfer.CodecZstd)
	if err != nil {
		t.Fatal(err)
	}
	options := Options{Transfer: transfer.Options{Transform: decode}}
	err = Install(context.Background(), newRecorder(), testPackage(), transfer.NopProgress{}, options)
	if !errors.Is(err, fault.InvalidArgument) {
		t.Fatalf("Install error = %v, want invalid argument", err)
	}
}
