// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package forwarder

import (
	"bytes"
	"encoding/binary"

	"github.com/nxpack/nxpack/lib/fault"
)

// NACPSize is the size of an application control property block.
const NACPSize = 0x4000

// LanguageCount is the number of title entries in a NACP.
const LanguageCount = 16

const (
	titleEntrySize     = 0x300
	titleNameSize      = 0x200
	titlePublisherSize = 0x100

	nacpStartupUserAccount   = 0x3025
	nacpSupportedLanguages   = 0x302C
	nacpScreenshot           = 0x3034
	nacpVideoCapture         = 0x3035
	nacpPresenceGroupID      = 0x3038
	nacpDisplayVersion       = 0x3060
	nacpDisplayVersionSize   = 0x10
	nacpAddOnContentBaseID   = 0x3070
	nacpSaveDataOwnerID      = 0x3078
	nacpLocalCommunicationID = 0x30B0
	localCommunicationIDs    = 8
	nacpLogoType             = 0x30F0
	nacpLogoHandling         = 0x30F1
	nacpCrashReport          = 0x30F6
	nacpPseudoDeviceIDSeed   = 0x30F8
)

// Flag values written into every forwarder NACP.
const (
	startupUserAccountNone = 0
	screenshotAllow        = 0
	videoCaptureEnable     = 2
	logoTypeNintendo       = 2
	logoHandlingAuto       = 0
	crashReportDeny        = 0
	addOnContentIDOffset   = 0x1000
)

// Control is the identity carried by a forwarder's NACP.
type Control struct {
	Name           string
	Author         string
	DisplayVersion string
	ApplicationID  uint64
}

// MarshalBinary encodes a NACP. Every language entry receives the same
// name and publisher. The title id is used as presence group, save
// data owner, local communication id and pseudo-device seed. Fields
// not written here, including every save data and journal size and the
// attribute word, stay zero.
func (c Control) MarshalBinary() ([]byte, error) {
	nacp := make([]byte, NACPSize)
	for language := range LanguageCount {
		entry := nacp[language*titleEntrySize:]
		putFixedString(entry[:titleNameSize], c.Name)
		putFixedString(entry[titleNameSize:titleNameSize+titlePublisherSize], c.Author)
	}
	putFixedString(nacp[nacpDisplayVersion:nacpDisplayVersion+nacpDisplayVersionSize], c.DisplayVersion)

	nacp[nacpStartupUserAccount] = startupUserAccountNone
	binary.LittleEndian.PutUint32(nacp[nacpSupportedLanguages:], 1<<LanguageCount-1)
	nacp[nacpScreenshot] = screenshotAllow
	nacp[nacpVideoCapture] = videoCaptureEnable
	nacp[nacpLogoType] = logoTypeNintendo
	nacp[nacpLogoHandling] = logoHandlingAuto
	nacp[nacpCrashReport] = crashReportDeny

	binary.LittleEndian.PutUint64(nacp[nacpPresenceGroupID:], c.ApplicationID)
	binary.LittleEndian.PutUint64(nacp[nacpAddOnContentBaseID:], c.ApplicationID+addOnContentIDOffset)
	binary.LittleEndian.PutUint64(nacp[nacpSaveDataOwnerID:], c.ApplicationID)
	for i := range localCommunicationIDs {
		binary.LittleEndian.PutUint64(nacp[nacpLocalCommunicationID+8*i:], c.ApplicationID)
	}
	binary.LittleEndian.PutUint64(nacp[nacpPseudoDeviceIDSeed:], c.ApplicationID)

	return nacp, nil
}

// ParseControl reads the identity back from a NACP, using the first
// language entry.
func ParseControl(nacp []byte) (Control, error) {
	if len(nacp) != NACPSize {
		return Control{}, fault.New(fault.InvalidArgument, "NACP is %d bytes, want %d", len(nacp), NACPSize)
	}
	return Control{
		Name:           fixedString(nacp[:titleNameSize]),
		Author:         fixedString(nacp[titleNameSize : titleNameSize+titlePublisherSize]),
		DisplayVersion: fixedString(nacp[nacpDisplayVersion : nacpDisplayVersion+nacpDisplayVersionSize]),
		ApplicationID:  binary.LittleEndian.Uint64(nacp[nacpSaveDataOwnerID:]),
	}, nil
}

func fixedString(field []byte) string {
	if end := bytes.IndexByte(field, 0); end >= 0 {
		field = field[:end]
	}
	return string(field)
}
