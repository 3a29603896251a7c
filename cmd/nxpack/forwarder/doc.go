// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package forwarder implements the "nxpack forwarder" command group:
// building a forwarder package for a homebrew executable and either
// writing its archives, exporting it as an NSP, or installing it into
// the local content store.
package forwarder
