// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ngccconfig

// defaultConfig is configuration for packages known to be published
// in a shape ngcc can't handle without help.
var defaultConfig = map[string]*rawPackageConfig{
	// package.json `main` points to a missing file.
	"angular2-highcharts": {
		entryPoints: map[string]*EntryPointConfig{
			".": {Override: map[string]any{"main": "./index.js"}},
		},
	},
	// secondary entry-point has no package.json `main`.
	"ng2-dragula": {
		entryPoints: map[string]*EntryPointConfig{
			"./dist": {Override: map[string]any{"main": "./index.js"}},
		},
	},
	// imports optional peer dependencies.
	"@angular/fire": {
		entryPoints: map[string]*EntryPointConfig{
			".":          {IgnoreMissingDependencies: true},
			"./firebase": {IgnoreMissingDependencies: true},
		},
	},
}

// DefaultPackages returns package names that have default configuration.
func DefaultPackages() []string {
	names := make([]string, 0, len(defaultConfig))
	for name := range defaultConfig {
		names = append(names, name)
	}
	return names
}
