// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package forwarder assembles forwarder packages: minimal installable
// applications whose only job is to start a homebrew executable (an
// NRO) with fixed arguments.
//
// A package is three content archives built entirely in memory:
//
//   - Program: ExeFS partition {main, main.npdm} in slot 0, a RomFS
//     holding /nextArgv and /nextNroPath in slot 1, and optionally a
//     logo partition {NintendoLogo.png, StartupMovie.gif} in slot 2.
//     main is a fixed loader stub that reads the two RomFS files and
//     chain-loads the NRO.
//   - Control: RomFS {control.nacp, icon_AmericanEnglish.dat}.
//   - Meta: partition {Application_<id>.cnmt} listing the other two
//     archives by digest.
//
// Title ids are derived from the NRO path and arguments ([TitleIDs]),
// so rebuilding a forwarder for the same target replaces the earlier
// install instead of creating a second application.
//
// [Create] returns a [Package] carrying the archive bytes together with
// the [Records] a registration sink needs. [ExportNSP] packs the
// archives into a single file for offline installation.
package forwarder
