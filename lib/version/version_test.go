// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func stubBuildInfo(t *testing.T, info *debug.BuildInfo, ok bool) {
	t.Helper()
	original := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, ok }
	t.Cleanup(func() { readBuildInfo = original })
}

func setLinkerValues(t *testing.T, commit, dirty string) {
	t.Helper()
	originalCommit, originalDirty := GitCommit, GitDirty
	GitCommit, GitDirty = commit, dirty
	t.Cleanup(func() { GitCommit, GitDirty = originalCommit, originalDirty })
}

func TestInfoPrefersLinkerValues(t *testing.T) {
	setLinkerValues(t, "abc1234", "true")
	stubBuildInfo(t, &debug.BuildInfo{Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffffffffffffffff"}}}, true)

	if info := Info(); !strings.Contains(info, "(abc1234-dirty,") {
		t.Errorf("Info() = %q, want linker commit with dirty suffix", info)
	}
}

func TestInfoFallsBackToBuildInfo(t *testing.T) {
	setLinkerValues(t, "unknown", "false")
	stubBuildInfo(t, &debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.modified", Value: "false"},
	}}, true)

	if info := Info(); !strings.Contains(info, "(0123456789ab,") {
		t.Errorf("Info() = %q, want truncated VCS revision", info)
	}
}

func TestInfoWithoutBuildInfo(t *testing.T) {
	setLinkerValues(t, "unknown", "false")
	stubBuildInfo(t, nil, false)

	if info := Info(); !strings.HasPrefix(info, Short()+" (unknown,") {
		t.Errorf("Info() = %q", info)
	}
}

func TestFull(t *testing.T) {
	if full := Full(); !strings.Contains(full, "Go: go") || !strings.Contains(full, "Platform: ") {
		t.Errorf("Full() = %q", full)
	}
}
