// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X main.Version=1.2.0 -X main.GitCommit=abc1234".
var (
	Version   = ""
	GitCommit = ""
)

// shortCommitLen is the number of hex digits shown for the commit.
const shortCommitLen = 7

// versionString renders "v<version>-<commit>", filling whatever the linker
// did not set from the module build info.
func versionString() string {
	info, _ := debug.ReadBuildInfo()
	return formatVersion(Version, GitCommit, info)
}

func formatVersion(version, commit string, info *debug.BuildInfo) string {
	modified := false
	if info != nil {
		if version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.modified":
				modified = s.Value == "true"
			}
		}
	}

	if version == "" {
		version = "0.0.0-dev"
	}
	version = strings.TrimPrefix(version, "v")
	if commit == "" {
		return "v" + version
	}

	if len(commit) > shortCommitLen {
		commit = commit[:shortCommitLen]
	}
	if modified {
		commit += "-dirty"
	}
	return "v" + version + "-" + commit
}
