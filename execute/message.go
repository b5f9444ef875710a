// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package execute

import (
	"fmt"
	"io"
	"sync"

	"github.com/goccy/go-json"

	"github.com/angular-go/ngcc/buildmarker"
)

// Message types exchanged between the master and workers.
const (
	// MsgProcessTask asks a worker to process Task.
	MsgProcessTask = "process-task"
	// MsgTaskCompleted reports Outcome of the task of a worker.
	MsgTaskCompleted = "task-completed"
	// MsgUpdatePackageJSON asks the master to write Changes to
	// PackageJSONPath.
	MsgUpdatePackageJSON = "update-package-json"
	// MsgError reports an error of a worker.
	MsgError = "error"
)

// Message is a message between the master and a worker.
// Messages are newline delimited JSON.
type Message struct {
	Type string `json:"type"`

	Task *Task `json:"task,omitempty"`

	Outcome Outcome `json:"outcome,omitempty"`
	Message string  `json:"message,omitempty"`

	PackageJSONPath string               `json:"packageJsonPath,omitempty"`
	Changes         []buildmarker.Change `json:"changes,omitempty"`

	Error string `json:"error,omitempty"`
}

// ProtocolError is an invalid message.
type ProtocolError struct {
	Type string
	Msg  string
}

func (e *ProtocolError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("invalid message %q: %s", e.Type, e.Msg)
	}
	return fmt.Sprintf("unknown message type %q", e.Type)
}

func validate(msg *Message) error {
	switch msg.Type {
	case MsgProcessTask:
		if msg.Task == nil || msg.Task.EntryPoint == nil {
			return &ProtocolError{Type: msg.Type, Msg: "no task"}
		}
	case MsgTaskCompleted:
		switch msg.Outcome {
		case Processed, Failed, Cached:
		default:
			return &ProtocolError{Type: msg.Type, Msg: fmt.Sprintf("bad outcome %q", msg.Outcome)}
		}
	case MsgUpdatePackageJSON:
		if msg.PackageJSONPath == "" {
			return &ProtocolError{Type: msg.Type, Msg: "no packageJsonPath"}
		}
	case MsgError:
	default:
		return &ProtocolError{Type: msg.Type}
	}
	return nil
}

// conn is a message connection.
type conn struct {
	dec *json.Decoder

	mu  sync.Mutex
	enc *json.Encoder
}

func newConn(r io.Reader, w io.Writer) *conn {
	return &conn{
		dec: json.NewDecoder(r),
		enc: json.NewEncoder(w),
	}
}

func (c *conn) send(msg *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.Encode(msg)
}

// receive returns the next valid message. It returns io.EOF when the
// peer closed the connection.
func (c *conn) receive() (*Message, error) {
	msg := &Message{}
	if err := c.dec.Decode(msg); err != nil {
		return nil, err
	}
	if err := validate(msg); err != nil {
		return nil, err
	}
	return msg, nil
}
