// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package forwarder

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/keyset"
	"github.com/nxpack/nxpack/lib/nca"
	"github.com/nxpack/nxpack/lib/pfs"
	"github.com/nxpack/nxpack/lib/testutil"
)

// Synthetic NPDM layout: META header, ACI0 at 0x80, ACID at 0xC0.
const (
	testACIOffset  = 0x80
	testACISize    = 0x40
	testACIDOffset = 0xC0
	testACIDSize   = 0x240
)

func syntheticNPDM() []byte {
	npdm := make([]byte, testACIDOffset+testACIDSize)
	copy(npdm, "META")
	copy(npdm[npdmNameOffset:], "Loader")
	copy(npdm[npdmProductOffset:], "LOADER-PRODUCT")
	binary.LittleEndian.PutUint32(npdm[0x70:], testACIOffset)
	binary.LittleEndian.PutUint32(npdm[0x74:], testACISize)
	binary.LittleEndian.PutUint32(npdm[0x78:], testACIDOffset)
	binary.LittleEndian.PutUint32(npdm[0x7C:], testACIDSize)
	copy(npdm[testACIOffset:], "ACI0")
	binary.LittleEndian.PutUint64(npdm[testACIOffset+0x10:], 0x0100_0000_0000_1000)
	copy(npdm[testACIDOffset+0x200:], "ACID")
	binary.LittleEndian.PutUint32(npdm[testACIDOffset+0x20C:], 0x1)
	return npdm
}

var (
	testHeaderKey  = bytes.Repeat([]byte{0x5A}, nca.HeaderKeySize)
	testKeyAreaKey = bytes.Repeat([]byte{0xA5}, 0x10)
)

func testKeys() *keyset.KeySet {
	keys := keyset.New()
	keys.Set(keyset.HeaderKeyName, testHeaderKey)
	keys.Set(keyset.KeyAreaKeyName(0), testKeyAreaKey)
	return keys
}

func testOptions() Options {
	return Options{
		Loader:         testutil.PatternBytes(70000),
		LoaderMetadata: syntheticNPDM(),
		NroPath:        "/switch/retroarch/retroarch.nro",
		Args:           `"/switch/retroarch/retroarch.nro" --menu`,
		Name:           "RetroArch",
		Author:         "libretro",
		Icon:           []byte("\xFF\xD8\xFFicon"),
		DisplayVersion: "1.19.1",
		SystemVersion:  MakeSystemVersion(17, 0, 1),
	}
}

func TestTitleIDs(t *testing.T) {
	ids := TitleIDs("/switch/app.nro", "--raw")

	digest := sha256.Sum256([]byte("/switch/app.nro\x00--raw"))
	low := binary.LittleEndian.Uint64(digest[:8]) & 0x0000_FFFF_FFFF_F000
	if ids.Application != 0x05<<56|low {
		t.Errorf("application id = %016x, want %016x", ids.Application, uint64(0x05<<56)|low)
	}
	if ids.Update != 0x01<<56|low {
		t.Errorf("update id = %016x, want %016x", ids.Update, uint64(0x01<<56)|low)
	}
	if ids.Application&0xFFF != 0 {
		t.Errorf("application id %016x has sub-id bits set", ids.Application)
	}
	if again := TitleIDs("/switch/app.nro", "--raw"); again != ids {
		t.Errorf("ids are not deterministic: %v then %v", ids, again)
	}
	if other := TitleIDs("/switch/app.nro", "--other"); other.Application == ids.Application {
		t.Error("different arguments produced the same id")
	}
	if ids.String() != FormatTitleID(ids.Application) || len(ids.String()) != 16 {
		t.Errorf("String() = %q", ids.String())
	}
}

func TestPatchNPDM(t *testing.T) {
	original := syntheticNPDM()
	const programID = 0x05AB_CDEF_0123_4000

	for _, test := range []struct {
		name      string
		version   SystemVersion
		wantFlags uint32
	}{
		{"below threshold", MakeSystemVersion(9, 2, 0), 0x1},
		{"at threshold", AcidPatchThreshold, 0x3},
		{"above threshold", MakeSystemVersion(18, 1, 0), 0x3},
	} {
		t.Run(test.name, func(t *testing.T) {
			patched, err := PatchNPDM(original, "A very long forwarder name", programID, test.version)
			if err != nil {
				t.Fatalf("PatchNPDM: %v", err)
			}
			if got := fixedString(patched[npdmNameOffset : npdmNameOffset+npdmNameSize]); got != "A very long for" {
				t.Errorf("name = %q", got)
			}
			if !bytes.Equal(patched[npdmProductOffset:npdmProductOffset+npdmProductSize], make([]byte, npdmProductSize)) {
				t.Error("product code was not cleared")
			}
			if got, err := NPDMProgramID(patched); err != nil || got != programID {
				t.Errorf("program id = %016x, %v", got, err)
			}
			if flags := binary.LittleEndian.Uint32(patched[testACIDOffset+0x20C:]); flags != test.wantFlags {
				t.Errorf("acid flags = %#x, want %#x", flags, test.wantFlags)
			}

			// Everything outside the patched fields is untouched.
			changed := map[int]bool{}
			for i := npdmNameOffset; i < npdmProductOffset+npdmProductSize; i++ {
				changed[i] = true
			}
			for i := range 8 {
				changed[testACIOffset+0x10+i] = true
			}
			changed[testACIDOffset+0x20C] = true
			for i := range original {
				if !changed[i] && patched[i] != original[i] {
					t.Fatalf("byte 0x%x changed from %#x to %#x", i, original[i], patched[i])
				}
			}
		})
	}
	if !bytes.Equal(original, syntheticNPDM()) {
		t.Fatal("PatchNPDM modified its input")
	}
}

func TestPatchNPDMRejectsMalformed(t *testing.T) {
	corrupt := func(edit func([]byte)) []byte {
		npdm := syntheticNPDM()
		edit(npdm)
		return npdm
	}
	cases := []struct {
		name string
		npdm []byte
	}{
		{"short", syntheticNPDM()[:0x40]},
		{"bad magic", corrupt(func(b []byte) { copy(b, "ATEM") })},
		{"aci outside file", corrupt(func(b []byte) { binary.LittleEndian.PutUint32(b[0x70:], 0x1000) })},
		{"aci magic", corrupt(func(b []byte) { copy(b[testACIOffset:], "XXXX") })},
		{"acid too small", corrupt(func(b []byte) { binary.LittleEndian.PutUint32(b[0x7C:], 0x100) })},
		{"acid magic", corrupt(func(b []byte) { copy(b[testACIDOffset+0x200:], "DICA") })},
	}
	for _, test := range cases {
		if _, err := PatchNPDM(test.npdm, "x", 1, 0); !errors.Is(err, fault.InvalidArgument) {
			t.Errorf("%s: error = %v, want invalid argument", test.name, err)
		}
	}
}

func TestSystemVersion(t *testing.T) {
	version := MakeSystemVersion(17, 0, 1)
	if version.String() != "17.0.1" {
		t.Errorf("String() = %q", version)
	}
	if !(MakeSystemVersion(9, 63, 15) < MakeSystemVersion(10, 0, 0)) {
		t.Error("versions do not order by major first")
	}
	for text, want := range map[string]SystemVersion{
		"17.0.1": MakeSystemVersion(17, 0, 1),
		"10":     MakeSystemVersion(10, 0, 0),
		"9.2":    MakeSystemVersion(9, 2, 0),
	} {
		if got, err := ParseSystemVersion(text); err != nil || got != want {
			t.Errorf("ParseSystemVersion(%q) = %v, %v; want %v", text, got, err, want)
		}
	}
	for _, text := range []string{"", "1.2.3.4", "x.0.0", "1.0.16", "64.0.0"} {
		if _, err := ParseSystemVersion(text); !errors.Is(err, fault.InvalidArgument) {
			t.Errorf("ParseSystemVersion(%q) error = %v", text, err)
		}
	}
}

func TestControl(t *testing.T) {
	control := Control{Name: "RetroArch", Author: "libretro", DisplayVersion: "1.19.1", ApplicationID: 0x05AB_CDEF_0123_4000}
	nacp, err := control.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(nacp) != NACPSize {
		t.Fatalf("NACP is %d bytes", len(nacp))
	}
	parsed, err := ParseControl(nacp)
	if err != nil || parsed != control {
		t.Fatalf("ParseControl = %+v, %v", parsed, err)
	}
	for language := range LanguageCount {
		entry := nacp[language*titleEntrySize:]
		if fixedString(entry[:titleNameSize]) != "RetroArch" || fixedString(entry[titleNameSize:titleEntrySize]) != "libretro" {
			t.Fatalf("language %d entry not filled", language)
		}
	}
	for _, offset := range []int{nacpPresenceGroupID, nacpSaveDataOwnerID, nacpLocalCommunicationID, nacpPseudoDeviceIDSeed} {
		if got := binary.LittleEndian.Uint64(nacp[offset:]); got != control.ApplicationID {
			t.Errorf("field 0x%x = %016x, want the application id", offset, got)
		}
	}
	for offset := 0x3080; offset < 0x30A8; offset += 8 {
		if got := binary.LittleEndian.Uint64(nacp[offset:]); got != 0 {
			t.Errorf("save size at 0x%x = %d, want 0", offset, got)
		}
	}
	if nacp[nacpVideoCapture] != videoCaptureEnable || nacp[nacpStartupUserAccount] != startupUserAccountNone {
		t.Error("flags not normalised")
	}
	if _, err := ParseControl(nacp[:100]); !errors.Is(err, fault.InvalidArgument) {
		t.Errorf("short NACP error = %v", err)
	}
}

func TestContentMetaRoundTrip(t *testing.T) {
	meta := &ContentMeta{
		TitleID: 0x05AB_CDEF_0123_4000,
		Type:    MetaApplication,
		PatchID: 0x01AB_CDEF_0123_4000,
		Contents: []ContentInfo{
			InfoOf(nca.ContentProgram, []byte("program archive")),
			InfoOf(nca.ContentControl, []byte("control archive")),
		},
	}
	encoded, err := meta.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if want := 0x20 + 0x10 + 2*0x38 + 0x20; len(encoded) != want {
		t.Fatalf("encoded %d bytes, want %d", len(encoded), want)
	}
	if encoded[0x0C] != 0x80 || binary.LittleEndian.Uint16(encoded[0x0E:]) != 0x10 {
		t.Error("header type or extended header size wrong")
	}
	parsed, err := ParseContentMeta(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.TitleID != meta.TitleID || parsed.PatchID != meta.PatchID || len(parsed.Contents) != 2 {
		t.Fatalf("parsed %+v", parsed)
	}
	for i, content := range parsed.Contents {
		if content != meta.Contents[i] {
			t.Errorf("content %d = %+v, want %+v", i, content, meta.Contents[i])
		}
	}
	if meta.FileName() != "Application_05abcdef01234000.cnmt" {
		t.Errorf("FileName() = %q", meta.FileName())
	}
	if _, err := ParseContentMeta(encoded[:0x50]); !errors.Is(err, fault.InvalidArgument) {
		t.Errorf("truncated meta error = %v", err)
	}
}

func TestCreate(t *testing.T) {
	options := testOptions()
	pkg, err := Create(testKeys(), options)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	headerKey := [nca.HeaderKeySize]byte(testHeaderKey)
	wantIDs := TitleIDs(options.NroPath, options.Args)
	if pkg.IDs != wantIDs {
		t.Fatalf("ids = %+v, want %+v", pkg.IDs, wantIDs)
	}

	open := func(name string, data []byte, kind nca.ContentType, sections int) *nca.Archive {
		t.Helper()
		if len(data)%nca.MediaUnit != 0 {
			t.Fatalf("%s archive is %d bytes", name, len(data))
		}
		archive, err := nca.Open(data, headerKey)
		if err != nil {
			t.Fatalf("opening %s: %v", name, err)
		}
		if err := archive.Verify(); err != nil {
			t.Fatalf("verifying %s: %v", name, err)
		}
		if archive.Header.ContentType != kind || archive.Header.ProgramID != wantIDs.Application {
			t.Fatalf("%s header: type %v, program id %016x", name, archive.Header.ContentType, archive.Header.ProgramID)
		}
		if got := len(archive.Sections()); got != sections {
			t.Fatalf("%s has %d sections, want %d", name, got, sections)
		}
		return archive
	}

	program := open("program", pkg.Program, nca.ContentProgram, 2)
	if main, _ := program.File(0, ExeMain); !bytes.Equal(main, options.Loader) {
		t.Error("ExeFS main is not the loader")
	}
	npdm, err := program.File(0, ExeMetadata)
	if err != nil {
		t.Fatal(err)
	}
	if id, _ := NPDMProgramID(npdm); id != wantIDs.Application {
		t.Errorf("NPDM program id = %016x", id)
	}
	if argv, _ := program.File(1, ArgvPath); string(argv) != options.Args {
		t.Errorf("nextArgv = %q", argv)
	}
	if nro, _ := program.File(1, NroPathPath); string(nro) != options.NroPath {
		t.Errorf("nextNroPath = %q", nro)
	}

	control := open("control", pkg.Control, nca.ContentControl, 1)
	nacp, err := control.File(0, NACPPath)
	if err != nil {
		t.Fatal(err)
	}
	identity, err := ParseControl(nacp)
	if err != nil {
		t.Fatal(err)
	}
	if identity.Name != "RetroArch" || identity.Author != "libretro" || identity.DisplayVersion != "1.19.1" {
		t.Errorf("control identity = %+v", identity)
	}
	if icon, _ := control.File(0, IconPath); !bytes.Equal(icon, options.Icon) {
		t.Error("icon not stored")
	}

	meta := open("meta", pkg.Meta, nca.ContentMeta, 1)
	cnmt, err := meta.File(0, "Application_"+wantIDs.String()+".cnmt")
	if err != nil {
		t.Fatal(err)
	}
	contentMeta, err := ParseContentMeta(cnmt)
	if err != nil {
		t.Fatal(err)
	}
	if len(contentMeta.Contents) != 2 {
		t.Fatalf("cnmt lists %d contents", len(contentMeta.Contents))
	}
	if contentMeta.TitleID != wantIDs.Application || contentMeta.PatchID != wantIDs.Update {
		t.Errorf("cnmt ids = %016x/%016x, want %016x/%016x",
			contentMeta.TitleID, contentMeta.PatchID, wantIDs.Application, wantIDs.Update)
	}
	if contentMeta.PatchID>>56 != 0x01 || contentMeta.PatchID&titleIDMask != contentMeta.TitleID&titleIDMask {
		t.Errorf("patch id %016x does not share the application's low bits", contentMeta.PatchID)
	}
	for i, data := range [][]byte{pkg.Program, pkg.Control} {
		digest := sha256.Sum256(data)
		record := contentMeta.Contents[i]
		if record.Digest != digest || record.Size != int64(len(data)) || !bytes.Equal(record.ID[:], digest[:16]) {
			t.Errorf("cnmt record %d does not describe its archive", i)
		}
	}
	if contentMeta.Contents[0].Type != RecordProgram || contentMeta.Contents[1].Type != RecordControl {
		t.Error("cnmt record types wrong")
	}

	records := pkg.Records
	if len(records.Contents) != 3 || records.Contents[2].Type != RecordMeta {
		t.Fatalf("records contents = %+v", records.Contents)
	}
	if records.Contents[2].Digest != sha256.Sum256(pkg.Meta) {
		t.Error("meta record digest wrong")
	}
	if records.Key.ID != wantIDs.Application || records.Application.ApplicationID != wantIDs.Application {
		t.Error("records carry the wrong application id")
	}
	if pkg.Size() != int64(len(pkg.Program)+len(pkg.Control)+len(pkg.Meta)) {
		t.Error("Size() does not sum the archives")
	}
}

func TestCreateWithLogo(t *testing.T) {
	options := testOptions()
	options.Logo = []byte("png")
	options.StartupMovie = []byte("gif")
	pkg, err := Create(testKeys(), options)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	program, err := nca.Open(pkg.Program, [nca.HeaderKeySize]byte(testHeaderKey))
	if err != nil {
		t.Fatal(err)
	}
	if len(program.Sections()) != 3 {
		t.Fatalf("program has %d sections, want 3", len(program.Sections()))
	}
	if gif, _ := program.File(2, LogoAnimation); string(gif) != "gif" {
		t.Errorf("startup movie = %q", gif)
	}
}

func TestCreateDefaults(t *testing.T) {
	options := testOptions()
	options.Args, options.Name, options.Author, options.DisplayVersion = "", "", "", ""
	pkg, err := Create(testKeys(), options)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if pkg.IDs != TitleIDs(options.NroPath, options.NroPath) {
		t.Error("empty args should hash the NRO path as the arguments")
	}
	if pkg.Records.Application.Name != "retroarch" || pkg.Records.Application.Author != defaultAuthor {
		t.Errorf("application record = %+v", pkg.Records.Application)
	}
}

func TestCreateRejectsMissingInputs(t *testing.T) {
	for name, edit := range map[string]func(*Options){
		"nro path":     func(o *Options) { o.NroPath = "" },
		"icon":         func(o *Options) { o.Icon = nil },
		"loader":       func(o *Options) { o.Loader = nil },
		"loader npdm":  func(o *Options) { o.LoaderMetadata = nil },
		"half a logo":  func(o *Options) { o.Logo = []byte("png") },
		"corrupt npdm": func(o *Options) { o.LoaderMetadata = []byte("not an npdm at all") },
	} {
		options := testOptions()
		edit(&options)
		if _, err := Create(testKeys(), options); !errors.Is(err, fault.InvalidArgument) {
			t.Errorf("%s: error = %v, want invalid argument", name, err)
		}
	}
}

func TestCreateRequiresKeys(t *testing.T) {
	keys := keyset.New()
	keys.Set(keyset.HeaderKeyName, testHeaderKey)
	options := testOptions()
	options.KeyGeneration = 3
	_, err := Create(keys, options)
	if !errors.Is(err, fault.KeyDerivation) {
		t.Fatalf("error = %v, want key derivation", err)
	}
}

func TestExportNSP(t *testing.T) {
	pkg, err := Create(testKeys(), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	nsp := ExportNSP(pkg)
	entries, err := pfs.Parse(nsp)
	if err != nil {
		t.Fatalf("parsing NSP: %v", err)
	}
	want := []string{
		pkg.Records.Contents[0].ID.String() + ".nca",
		pkg.Records.Contents[1].ID.String() + ".nca",
		pkg.Records.Contents[2].ID.String() + ".cnmt.nca",
	}
	if len(entries) != len(want) {
		t.Fatalf("NSP has %d entries", len(entries))
	}
	for i, entry := range entries {
		if entry.Name != want[i] {
			t.Errorf("entry %d = %q, want %q", i, entry.Name, want[i])
		}
	}
	meta, err := pfs.Lookup(nsp, want[2])
	if err != nil || !bytes.Equal(meta, pkg.Meta) {
		t.Fatalf("meta entry does not hold the meta archive: %v", err)
	}
}
