// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package execute

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		msg     *Message
		wantErr bool
	}{
		{
			name: "processed",
			msg:  &Message{Type: MsgTaskCompleted, Outcome: Processed},
		},
		{
			name: "failed",
			msg:  &Message{Type: MsgTaskCompleted, Outcome: Failed, Message: "boom"},
		},
		{
			name: "cached",
			msg:  &Message{Type: MsgTaskCompleted, Outcome: Cached},
		},
		{
			name:    "bad outcome",
			msg:     &Message{Type: MsgTaskCompleted, Outcome: "done"},
			wantErr: true,
		},
		{
			name:    "no task",
			msg:     &Message{Type: MsgProcessTask},
			wantErr: true,
		},
		{
			name:    "no package.json path",
			msg:     &Message{Type: MsgUpdatePackageJSON},
			wantErr: true,
		},
		{
			name: "error",
			msg:  &Message{Type: MsgError, Error: "boom"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := validate(tc.msg)
			var perr *ProtocolError
			if got := errors.As(err, &perr); got != tc.wantErr {
				t.Errorf("validate(%v)=%v; want protocol error %t", tc.msg, err, tc.wantErr)
			}
		})
	}
}
