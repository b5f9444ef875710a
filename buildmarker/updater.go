// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package buildmarker

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/angular-go/ngcc/entrypoint"
	"github.com/angular-go/ngcc/o11y/clog"
	"github.com/angular-go/ngcc/osfs"
)

// Change is a change to a property of package.json.
type Change struct {
	// PropertyPath is the path of the property, e.g.
	// ["scripts", "prepublishOnly"].
	PropertyPath []string `json:"propertyPath"`
	// Value is the new value. nil deletes the property.
	Value any `json:"value"`
}

// Updater writes changes to package.json.
type Updater interface {
	// WriteChanges applies changes to pkg in memory and to the
	// package.json file at packageJSONPath.
	WriteChanges(ctx context.Context, packageJSONPath string, pkg entrypoint.PackageJSON, changes []Change) error
}

// ApplyChanges applies changes to pkg.
func ApplyChanges(pkg entrypoint.PackageJSON, changes []Change) error {
	for _, c := range changes {
		if len(c.PropertyPath) == 0 {
			return fmt.Errorf("empty property path")
		}
		m := map[string]any(pkg)
		for i, key := range c.PropertyPath[:len(c.PropertyPath)-1] {
			v, ok := m[key]
			if !ok || v == nil {
				if c.Value == nil {
					m = nil
					break
				}
				child := make(map[string]any)
				m[key] = child
				m = child
				continue
			}
			child, ok := v.(map[string]any)
			if !ok {
				return fmt.Errorf("property %q is not an object", c.PropertyPath[:i+1])
			}
			m = child
		}
		if m == nil {
			continue
		}
		last := c.PropertyPath[len(c.PropertyPath)-1]
		if c.Value == nil {
			delete(m, last)
			continue
		}
		m[last] = c.Value
	}
	return nil
}

// DirectUpdater writes package.json files directly.
// Only one process (the master) should write package.json files.
type DirectUpdater struct {
	FS osfs.FS

	mu sync.Mutex
}

// WriteChanges applies changes to pkg and to the package.json file
// re-read from disk, so that changes of other tasks on the same file are
// preserved.
func (u *DirectUpdater) WriteChanges(ctx context.Context, packageJSONPath string, pkg entrypoint.PackageJSON, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}
	if pkg != nil {
		if err := ApplyChanges(pkg, changes); err != nil {
			return fmt.Errorf("failed to update %s: %w", packageJSONPath, err)
		}
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	onDisk, err := entrypoint.ReadPackageJSON(u.FS, packageJSONPath)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", packageJSONPath, err)
	}
	if err := ApplyChanges(onDisk, changes); err != nil {
		return fmt.Errorf("failed to update %s: %w", packageJSONPath, err)
	}
	buf, err := json.MarshalIndent(onDisk, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", packageJSONPath, err)
	}
	buf = append(buf, '\n')
	clog.Debugf(ctx, "update %s: %d changes", packageJSONPath, len(changes))
	return u.FS.WriteFile(packageJSONPath, buf, 0644)
}

// ClusterUpdater applies changes in memory and forwards them to the
// master process that writes them to disk.
type ClusterUpdater struct {
	// Send sends changes to the master.
	Send func(ctx context.Context, packageJSONPath string, changes []Change) error
}

// WriteChanges applies changes to pkg and sends them to the master.
func (u *ClusterUpdater) WriteChanges(ctx context.Context, packageJSONPath string, pkg entrypoint.PackageJSON, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}
	if pkg != nil {
		if err := ApplyChanges(pkg, changes); err != nil {
			return fmt.Errorf("failed to update %s: %w", packageJSONPath, err)
		}
	}
	return u.Send(ctx, packageJSONPath, changes)
}
