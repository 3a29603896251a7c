// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package forwarder

import (
	"cmp"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/nca"
	"github.com/nxpack/nxpack/lib/pfs"
	"github.com/nxpack/nxpack/lib/romfs"
)

// RomFS and ExeFS file names the loader stub and the platform expect.
const (
	ExeMain       = "main"
	ExeMetadata   = "main.npdm"
	ArgvPath      = "/nextArgv"
	NroPathPath   = "/nextNroPath"
	NACPPath      = "/control.nacp"
	IconPath      = "/icon_AmericanEnglish.dat"
	LogoImage     = "NintendoLogo.png"
	LogoAnimation = "StartupMovie.gif"
)

const (
	programSlot = 0
	dataSlot    = 1
	logoSlot    = 2

	defaultAuthor         = "nxpack"
	defaultDisplayVersion = "1.0.0"
)

// KeyProvider supplies the key material for one key generation.
// [*keyset.KeySet] implements it.
type KeyProvider interface {
	ArchiveKeys(generation uint8) (nca.Keys, error)
}

// Options describe one forwarder.
type Options struct {
	// Loader is the loader stub executable placed in ExeFS as main.
	Loader []byte

	// LoaderMetadata is the stub's NPDM. Its identity fields are
	// patched per forwarder.
	LoaderMetadata []byte

	// NroPath is the absolute path of the executable to start.
	NroPath string

	// Args is written to /nextArgv. Empty means NroPath alone.
	Args string

	// Name and Author fill every NACP language entry. Name defaults to
	// the NRO file name without extension.
	Name   string
	Author string

	// Icon is the JPEG shown on the home menu.
	Icon []byte

	// Logo and StartupMovie replace the boot logo. Both or neither.
	Logo         []byte
	StartupMovie []byte

	DisplayVersion string

	// SystemVersion is the firmware the package will be installed on;
	// it decides whether the NPDM needs the ACID patch.
	SystemVersion SystemVersion

	KeyGeneration   uint8
	SDKAddonVersion uint32

	Logger *slog.Logger
}

// ContentMetaKey identifies one installed title version.
type ContentMetaKey struct {
	ID          uint64   `cbor:"id"`
	Version     uint32   `cbor:"version"`
	Type        MetaType `cbor:"type"`
	InstallType uint8    `cbor:"install_type"`
}

func (k ContentMetaKey) String() string {
	return fmt.Sprintf("%s-v%d-%s", FormatTitleID(k.ID), k.Version, k.Type)
}

// ApplicationRecord is the entry pushed to the application registry.
type ApplicationRecord struct {
	ApplicationID uint64           `cbor:"application_id"`
	Name          string           `cbor:"name"`
	Author        string           `cbor:"author"`
	Keys          []ContentMetaKey `cbor:"keys"`
}

// Records is everything a registration sink stores for a package.
type Records struct {
	Key ContentMetaKey `cbor:"key"`

	// Contents lists Program, Control and Meta, in install order.
	Contents []ContentInfo `cbor:"contents"`

	Application ApplicationRecord `cbor:"application"`
}

// Package is a built forwarder.
type Package struct {
	Program []byte
	Control []byte
	Meta    []byte

	IDs     IDs
	Records Records
}

// Archive pairs archive bytes with their record.
type Archive struct {
	Info ContentInfo
	Data []byte
}

// Archives returns Program, Control and Meta in install order.
func (p *Package) Archives() []Archive {
	return []Archive{
		{Info: p.Records.Contents[0], Data: p.Program},
		{Info: p.Records.Contents[1], Data: p.Control},
		{Info: p.Records.Contents[2], Data: p.Meta},
	}
}

// Size is the total archive size in bytes.
func (p *Package) Size() int64 {
	return int64(len(p.Program) + len(p.Control) + len(p.Meta))
}

// Create builds the three archives of a forwarder. Missing required
// inputs are InvalidArgument; missing key material is KeyDerivation.
func Create(keys KeyProvider, options Options) (*Package, error) {
	if err := options.validate(); err != nil {
		return nil, err
	}
	logger := cmp.Or(options.Logger, slog.Default())

	archiveKeys, err := keys.ArchiveKeys(options.KeyGeneration)
	if err != nil {
		return nil, fault.Wrap(fault.KeyDerivation, fmt.Errorf("forwarder keys: %w", err))
	}
	builder := &nca.Builder{
		Keys:            archiveKeys,
		KeyGeneration:   options.KeyGeneration,
		SDKAddonVersion: options.SDKAddonVersion,
	}

	args := cmp.Or(options.Args, options.NroPath)
	ids := TitleIDs(options.NroPath, args)
	name := cmp.Or(options.Name, strings.TrimSuffix(path.Base(options.NroPath), path.Ext(options.NroPath)))
	author := cmp.Or(options.Author, defaultAuthor)

	program, err := buildProgram(builder, ids.Application, name, args, options)
	if err != nil {
		return nil, fmt.Errorf("program archive: %w", err)
	}
	control, err := buildControl(builder, Control{
		Name:           name,
		Author:         author,
		DisplayVersion: cmp.Or(options.DisplayVersion, defaultDisplayVersion),
		ApplicationID:  ids.Application,
	}, options.Icon)
	if err != nil {
		return nil, fmt.Errorf("control archive: %w", err)
	}

	contents := []ContentInfo{
		InfoOf(nca.ContentProgram, program),
		InfoOf(nca.ContentControl, control),
	}
	meta := &ContentMeta{
		TitleID:  ids.Application,
		Type:     MetaApplication,
		PatchID:  ids.Update,
		Contents: contents,
	}
	metaArchive, err := buildMeta(builder, meta)
	if err != nil {
		return nil, fmt.Errorf("meta archive: %w", err)
	}
	contents = append(contents, InfoOf(nca.ContentMeta, metaArchive))

	key := ContentMetaKey{ID: ids.Application, Type: MetaApplication}
	pkg := &Package{
		Program: program,
		Control: control,
		Meta:    metaArchive,
		IDs:     ids,
		Records: Records{
			Key:      key,
			Contents: contents,
			Application: ApplicationRecord{
				ApplicationID: ids.Application,
				Name:          name,
				Author:        author,
				Keys:          []ContentMetaKey{key},
			},
		},
	}
	logger.Debug("built forwarder",
		"application_id", ids.String(),
		"name", name,
		"nro_path", options.NroPath,
		"size", pkg.Size(),
	)
	return pkg, nil
}

func (o *Options) validate() error {
	switch {
	case o.NroPath == "":
		return fault.New(fault.InvalidArgument, "forwarder needs an NRO path")
	case len(o.Icon) == 0:
		return fault.New(fault.InvalidArgument, "forwarder needs an icon")
	case len(o.Loader) == 0:
		return fault.New(fault.InvalidArgument, "forwarder needs the loader executable")
	case len(o.LoaderMetadata) == 0:
		return fault.New(fault.InvalidArgument, "forwarder needs the loader NPDM")
	case (len(o.Logo) == 0) != (len(o.StartupMovie) == 0):
		return fault.New(fault.InvalidArgument, "custom logo needs both the image and the startup movie")
	}
	return nil
}

func buildProgram(builder *nca.Builder, programID uint64, name, args string, options Options) ([]byte, error) {
	npdm, err := PatchNPDM(options.LoaderMetadata, name, programID, options.SystemVersion)
	if err != nil {
		return nil, err
	}
	exefs, err := nca.PartitionSection(programSlot, pfs.BuildHashed([]pfs.File{
		{Name: ExeMain, Data: options.Loader},
		{Name: ExeMetadata, Data: npdm},
	}, pfs.ExeFSBlockSize))
	if err != nil {
		return nil, err
	}
	data, err := romFSSection(dataSlot, []romfs.File{
		{Path: ArgvPath, Data: []byte(args)},
		{Path: NroPathPath, Data: []byte(options.NroPath)},
	})
	if err != nil {
		return nil, err
	}
	sections := []nca.Section{exefs, data}

	if len(options.Logo) > 0 {
		logo, err := nca.PartitionSection(logoSlot, pfs.BuildHashed([]pfs.File{
			{Name: LogoImage, Data: options.Logo},
			{Name: LogoAnimation, Data: options.StartupMovie},
		}, pfs.LogoBlockSize))
		if err != nil {
			return nil, err
		}
		sections = append(sections, logo)
	}
	return builder.Build(nca.ContentProgram, programID, sections)
}

func buildControl(builder *nca.Builder, control Control, icon []byte) ([]byte, error) {
	nacp, err := control.MarshalBinary()
	if err != nil {
		return nil, err
	}
	section, err := romFSSection(0, []romfs.File{
		{Path: NACPPath, Data: nacp},
		{Path: IconPath, Data: icon},
	})
	if err != nil {
		return nil, err
	}
	return builder.Build(nca.ContentControl, control.ApplicationID, []nca.Section{section})
}

func buildMeta(builder *nca.Builder, meta *ContentMeta) ([]byte, error) {
	cnmt, err := meta.MarshalBinary()
	if err != nil {
		return nil, err
	}
	section, err := nca.PartitionSection(0, pfs.BuildHashed([]pfs.File{
		{Name: meta.FileName(), Data: cnmt},
	}, pfs.MetaBlockSize))
	if err != nil {
		return nil, err
	}
	return builder.Build(nca.ContentMeta, meta.TitleID, []nca.Section{section})
}

func romFSSection(slot int, files []romfs.File) (nca.Section, error) {
	image, rawSize := romfs.Build(files)
	return nca.RomFSSection(slot, romfs.BuildIntegrity(image, rawSize))
}

// ExportNSP packs the archives into a PFS0 named by content id:
// <id>.nca for Program and Control, <id>.cnmt.nca for Meta.
func ExportNSP(pkg *Package) []byte {
	files := make([]pfs.File, 0, 3)
	for _, archive := range pkg.Archives() {
		files = append(files, pfs.File{Name: NSPEntryName(archive.Info), Data: archive.Data})
	}
	return pfs.Build(files)
}

// NSPEntryName is the file name an archive gets inside an NSP.
func NSPEntryName(info ContentInfo) string {
	if info.Type == RecordMeta {
		return info.ID.String() + ".cnmt.nca"
	}
	return info.ID.String() + ".nca"
}
