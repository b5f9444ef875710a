// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package analysis

import (
	"github.com/angular-go/ngcc/bundle"
	"github.com/angular-go/ngcc/host"
)

// SwitchMarkerAnalyses are switch markers keyed by file path.
type SwitchMarkerAnalyses map[string][]host.SwitchMarker

// SwitchMarkerAnalyzer finds switchable declarations of a bundle.
type SwitchMarkerAnalyzer struct {
	Bundle *bundle.EntryPointBundle
	Host   host.ReflectionHost
}

// Analyze returns switch markers of files that have them.
func (a *SwitchMarkerAnalyzer) Analyze() SwitchMarkerAnalyses {
	analyses := make(SwitchMarkerAnalyses)
	for _, f := range a.Bundle.Src.Files {
		if markers := a.Host.SwitchMarkers(f); len(markers) > 0 {
			analyses[f.Path] = markers
		}
	}
	return analyses
}
