// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package buildmarker records processed formats in package.json.
package buildmarker

import (
	"context"
	"sort"
	"strings"

	"github.com/angular-go/ngcc/entrypoint"
)

// Version is the version of ngcc recorded in build markers.
const Version = "0.1.0"

const (
	// MarkerKey is the package.json property that maps processed format
	// properties to the version of ngcc that processed them.
	MarkerKey = "__modified_by_ngcc__"

	// PrepublishOnlyBackup keeps the original `scripts.prepublishOnly`.
	PrepublishOnlyBackup = "prepublishOnly__ivy_ngcc_bak"

	// IvySuffix is added to a format property pointing to a new
	// entry-point bundle.
	IvySuffix = "_ivy_ngcc"
)

// prepublishOnlyGuard fails `npm publish` of a processed package.
const prepublishOnlyGuard = `node --eval "console.error('` +
	`ERROR: Trying to publish a package that has been compiled by ngcc. This is not allowed.\n` +
	`Please delete and rebuild the package, without compiling with ngcc, before attempting to publish.\n` +
	`Note that ngcc may have been executed by importing this package into another project that is being built with Ivy enabled.\n` +
	`')" && exit 1`

// HasBeenProcessed reports whether prop of pkg was processed by this
// version of ngcc. A marker of another version means unprocessed.
func HasBeenProcessed(pkg entrypoint.PackageJSON, prop string) bool {
	markers, ok := pkg.Object(MarkerKey)
	if !ok {
		return false
	}
	v, ok := markers[prop].(string)
	return ok && v == Version
}

// NeedsCleaning reports whether pkg has markers of another version.
func NeedsCleaning(pkg entrypoint.PackageJSON) bool {
	markers, ok := pkg.Object(MarkerKey)
	if !ok {
		return false
	}
	for _, v := range markers {
		if s, ok := v.(string); !ok || s != Version {
			return true
		}
	}
	return false
}

// MarkAsProcessed marks props as processed and guards publishing.
func MarkAsProcessed(ctx context.Context, updater Updater, pkg entrypoint.PackageJSON, packageJSONPath string, props []string) error {
	props = append([]string{}, props...)
	sort.Strings(props)
	var changes []Change
	for _, prop := range props {
		changes = append(changes, Change{
			PropertyPath: []string{MarkerKey, prop},
			Value:        Version,
		})
	}
	scripts, _ := pkg.Object("scripts")
	if old, ok := scripts["prepublishOnly"].(string); ok && old != prepublishOnlyGuard {
		changes = append(changes, Change{
			PropertyPath: []string{"scripts", PrepublishOnlyBackup},
			Value:        old,
		})
	}
	changes = append(changes, Change{
		PropertyPath: []string{"scripts", "prepublishOnly"},
		Value:        prepublishOnlyGuard,
	})
	return updater.WriteChanges(ctx, packageJSONPath, pkg, changes)
}

// CleanPackageJSON removes markers, ivy format properties and the
// publish guard of a previous ngcc run from pkg.
// It returns false if there was nothing to clean.
func CleanPackageJSON(ctx context.Context, updater Updater, pkg entrypoint.PackageJSON, packageJSONPath string) (bool, error) {
	var changes []Change
	if _, ok := pkg[MarkerKey]; ok {
		changes = append(changes, Change{PropertyPath: []string{MarkerKey}})
	}
	var keys []string
	for k := range pkg {
		if strings.HasSuffix(k, IvySuffix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		changes = append(changes, Change{PropertyPath: []string{k}})
	}
	scripts, _ := pkg.Object("scripts")
	if scripts["prepublishOnly"] == prepublishOnlyGuard {
		if old, ok := scripts[PrepublishOnlyBackup]; ok {
			changes = append(changes,
				Change{PropertyPath: []string{"scripts", "prepublishOnly"}, Value: old},
				Change{PropertyPath: []string{"scripts", PrepublishOnlyBackup}})
		} else {
			changes = append(changes, Change{PropertyPath: []string{"scripts", "prepublishOnly"}})
		}
	}
	if len(changes) == 0 {
		return false, nil
	}
	return true, updater.WriteChanges(ctx, packageJSONPath, pkg, changes)
}
