// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package install registers a built forwarder package with a
// [contentstore.Registrar]. Each archive is streamed into a
// placeholder through the transfer pipeline and registered, then the
// content meta and application records are written and committed.
//
// Installation does not roll back. When a step fails the error names
// the step and every earlier step stays registered; callers that want
// a clean slate call DeleteContent for the package's content ids.
package install
