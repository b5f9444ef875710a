// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package clog

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestWithLabels(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	ctx := NewContext(context.Background(), logger)
	ctx = WithLabels(ctx, LabelEntryPoint, "@angular/core", LabelFormat, "esm2015")

	Infof(ctx, "compiling %s", "core")
	got := buf.String()
	for _, want := range []string{"compiling core", "entrypoint=", "@angular/core", "format=esm2015"} {
		if !strings.Contains(got, want) {
			t.Errorf("log output %q; want to contain %q", got, want)
		}
	}
	if !V(ctx) {
		t.Errorf("V(ctx)=false; want true for debug level")
	}
}

func TestFromContext_default(t *testing.T) {
	if got := FromContext(context.Background()); got != log.Default() {
		t.Errorf("FromContext(background)=%p; want default logger %p", got, log.Default())
	}
}
