// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deps

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/angular-go/ngcc/entrypoint"
	"github.com/angular-go/ngcc/ngccconfig"
	"github.com/angular-go/ngcc/o11y/clog"
	"github.com/angular-go/ngcc/osfs"
)

// SortedEntryPointsInfo is a result of SortEntryPointsByDependency.
type SortedEntryPointsInfo = entrypoint.SortedEntryPointsInfo

// DependencyCycleError is error type for dependency cycle between
// entry-points.
type DependencyCycleError struct {
	EntryPoints []string
}

func (d DependencyCycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(d.EntryPoints, " -> "))
}

// builtinModules are Node.js builtin modules, never reported missing.
var builtinModules = map[string]bool{
	"assert": true, "buffer": true, "child_process": true, "crypto": true,
	"events": true, "fs": true, "http": true, "https": true, "net": true,
	"os": true, "path": true, "querystring": true, "stream": true,
	"string_decoder": true, "tty": true, "url": true, "util": true,
	"vm": true, "zlib": true,
}

func isBuiltinModule(name string) bool {
	return builtinModules[strings.TrimPrefix(name, "node:")]
}

// Resolver computes dependencies between entry-points.
type Resolver struct {
	fs     osfs.FS
	hosts  map[entrypoint.Format]Host
	config *ngccconfig.Configuration

	mu    sync.Mutex
	cache map[string]*DependencyInfo
}

var _ entrypoint.DependencyResolver = (*Resolver)(nil)

// NewResolver creates a resolver using hosts per format.
// config is used to suppress deep import warnings; it may be nil.
func NewResolver(fsys osfs.FS, hosts map[entrypoint.Format]Host, config *ngccconfig.Configuration) *Resolver {
	return &Resolver{
		fs:     fsys,
		hosts:  hosts,
		config: config,
		cache:  make(map[string]*DependencyInfo),
	}
}

// GetEntryPointDependencies returns dependency info of the primary
// format of ep. The result is cached per entry-point.
func (r *Resolver) GetEntryPointDependencies(ctx context.Context, ep *entrypoint.EntryPoint) (*DependencyInfo, error) {
	r.mu.Lock()
	info, ok := r.cache[ep.Path]
	r.mu.Unlock()
	if ok {
		return info, nil
	}
	for _, prop := range entrypoint.SupportedFormatProperties {
		format, ok := entrypoint.GetEntryPointFormat(ctx, r.fs, ep, prop)
		if !ok {
			continue
		}
		h, ok := r.hosts[format]
		if !ok {
			continue
		}
		fname, ok := entrypoint.ResolveBundlePath(ctx, r.fs, ep, prop)
		if !ok {
			continue
		}
		clog.Debugf(ctx, "compute dependencies of %s from %s (%s)", ep.Path, prop, format)
		info, err := h.FindDependencies(ctx, fname)
		if err != nil {
			return nil, fmt.Errorf("failed to compute dependencies of entry-point %s: %w", ep.Path, err)
		}
		r.mu.Lock()
		r.cache[ep.Path] = info
		r.mu.Unlock()
		return info, nil
	}
	return nil, fmt.Errorf("could not find a suitable format for computing dependencies of entry-point: '%s'", ep.Path)
}

// EntryPointDependencies returns entry-point paths ep depends on.
func (r *Resolver) EntryPointDependencies(ctx context.Context, ep *entrypoint.EntryPoint) ([]string, error) {
	info, err := r.GetEntryPointDependencies(ctx, ep)
	if err != nil {
		return nil, err
	}
	return info.Dependencies, nil
}

type scanState int

const (
	scanStateNotVisited scanState = iota
	scanStateVisiting
	scanStateDone
	scanStateInvalid
)

func (s scanState) String() string {
	switch s {
	case scanStateNotVisited:
		return "not-visited"
	case scanStateVisiting:
		return "visiting"
	case scanStateDone:
		return "done"
	case scanStateInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("unknown=%d", int(s))
	}
}

type node struct {
	ep      *entrypoint.EntryPoint
	deps    []string
	scan    scanState
	missing []string
	cycle   []string
}

type sorter struct {
	nodes   map[string]*node
	stack   []string
	order   []string
	invalid []entrypoint.InvalidEntryPoint
}

// SortEntryPointsByDependency sorts entryPoints so that dependencies
// come before their dependents.
//
// Only entry-points compiled by Angular are sorted. Entry-points with
// missing dependencies, or depending on invalid entry-points, or on a
// dependency cycle, are reported as invalid.
// If target is not nil, only target and its transitive dependencies are
// returned.
func (r *Resolver) SortEntryPointsByDependency(ctx context.Context, entryPoints []*entrypoint.EntryPoint, target *entrypoint.EntryPoint) (*SortedEntryPointsInfo, error) {
	info := &SortedEntryPointsInfo{
		Graph: make(map[string][]string),
	}
	s := &sorter{nodes: make(map[string]*node)}
	var paths []string
	for _, ep := range entryPoints {
		if !ep.CompiledByAngular {
			continue
		}
		if _, dup := s.nodes[ep.Path]; dup {
			continue
		}
		s.nodes[ep.Path] = &node{ep: ep}
		paths = append(paths, ep.Path)
	}
	for _, p := range paths {
		n := s.nodes[p]
		depInfo, err := r.GetEntryPointDependencies(ctx, n.ep)
		if err != nil {
			return nil, err
		}
		for _, m := range depInfo.Missing {
			if isBuiltinModule(m) {
				continue
			}
			n.missing = append(n.missing, m)
		}
		if n.ep.IgnoreMissingDependencies {
			n.missing = nil
		}
		for _, dep := range depInfo.Dependencies {
			if dep == p {
				continue
			}
			if _, ok := s.nodes[dep]; ok {
				n.deps = append(n.deps, dep)
				continue
			}
			info.IgnoredDependencies = append(info.IgnoredDependencies, entrypoint.IgnoredDependency{
				EntryPoint:     n.ep,
				DependencyPath: dep,
			})
		}
		r.warnDeepImports(ctx, n.ep, depInfo.DeepImports)
	}
	for _, p := range paths {
		s.visit(ctx, p)
	}
	info.InvalidEntryPoints = s.invalid

	order := s.order
	if target != nil {
		order = nil
		n, ok := s.nodes[target.Path]
		if target.CompiledByAngular && ok && n.scan == scanStateDone {
			closure := s.closure(target.Path)
			for _, p := range s.order {
				if closure[p] {
					order = append(order, p)
				}
			}
		}
	}
	for _, p := range order {
		n := s.nodes[p]
		info.EntryPoints = append(info.EntryPoints, n.ep)
		info.Graph[p] = append([]string{}, n.deps...)
	}
	return info, nil
}

// visit visits entry-point p depth first and appends it to order after
// its dependencies, or marks it invalid.
func (s *sorter) visit(ctx context.Context, p string) {
	n := s.nodes[p]
	switch n.scan {
	case scanStateDone, scanStateInvalid:
		return
	case scanStateVisiting:
		s.markCycle(ctx, p)
		return
	}
	n.scan = scanStateVisiting
	s.stack = append(s.stack, p)
	defer func() {
		s.stack = s.stack[:len(s.stack)-1]
	}()
	if len(n.missing) > 0 {
		s.markInvalid(n, n.missing, nil)
		return
	}
	for _, dep := range n.deps {
		s.visit(ctx, dep)
		dn := s.nodes[dep]
		if dn.scan == scanStateInvalid && n.scan != scanStateInvalid {
			s.markInvalid(n, dn.missing, dn.cycle)
		}
	}
	switch n.scan {
	case scanStateInvalid:
		return
	case scanStateVisiting:
		n.scan = scanStateDone
		s.order = append(s.order, p)
	}
}

// markCycle marks entry-points on the stack from p as a cycle.
func (s *sorter) markCycle(ctx context.Context, p string) {
	i := len(s.stack) - 1
	for i >= 0 && s.stack[i] != p {
		i--
	}
	cycle := append(append([]string{}, s.stack[i:]...), p)
	clog.Warningf(ctx, "%v", DependencyCycleError{EntryPoints: cycle})
	for _, c := range s.stack[i:] {
		n := s.nodes[c]
		if n.scan == scanStateInvalid {
			continue
		}
		s.markInvalid(n, nil, cycle)
	}
}

func (s *sorter) markInvalid(n *node, missing, cycle []string) {
	n.scan = scanStateInvalid
	n.missing = missing
	n.cycle = cycle
	s.invalid = append(s.invalid, entrypoint.InvalidEntryPoint{
		EntryPoint:          n.ep,
		MissingDependencies: missing,
		Cycle:               cycle,
	})
}

// closure returns p and its transitive dependencies.
func (s *sorter) closure(p string) map[string]bool {
	seen := map[string]bool{p: true}
	queue := []string{p}
	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]
		for _, dep := range s.nodes[q].deps {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			queue = append(queue, dep)
		}
	}
	return seen
}

func (r *Resolver) warnDeepImports(ctx context.Context, ep *entrypoint.EntryPoint, deepImports []string) {
	var warn []string
	for _, d := range deepImports {
		if r.config != nil {
			pc, err := r.config.GetPackageConfig(ctx, ep.Package)
			if err == nil && pc.IsIgnorableDeepImport(d) {
				continue
			}
		}
		warn = append(warn, d)
	}
	if len(warn) == 0 {
		return
	}
	sort.Strings(warn)
	clog.Warningf(ctx, "Entry point '%s' contains deep imports into '%s'. This is probably not a problem, but may cause the compilation of entry points to be out of order.", ep.Name, strings.Join(warn, "', '"))
}
