// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package worker

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/angular-go/ngcc/execute"
)

func TestRun_invalidPathMappings(t *testing.T) {
	c := &workerCmdRun{}
	c.init()
	c.pathMappings = "{"
	err := c.run(context.Background(), strings.NewReader(""), &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "invalid -path-mappings") {
		t.Errorf("run(...)=%v; want invalid -path-mappings error", err)
	}
}

func TestRun_unknownMessage(t *testing.T) {
	c := &workerCmdRun{}
	c.init()
	c.pathMappings = `{"baseUrl":"/src","paths":{"*":["lib/*"]}}`
	var out bytes.Buffer
	err := c.run(context.Background(), strings.NewReader(`{"type":"bogus"}`+"\n"), &out)
	if err == nil {
		t.Fatalf("run(bogus)=nil; want error")
	}
	var msg execute.Message
	if err := json.Unmarshal(out.Bytes(), &msg); err != nil {
		t.Fatalf("reply %q: %v", out.String(), err)
	}
	if msg.Type != execute.MsgError {
		t.Errorf("reply type=%q; want %q", msg.Type, execute.MsgError)
	}
}
