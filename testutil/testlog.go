// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"io"
	"strings"
	"testing"
)

// TestWriter adapts a *testing.T into an io.Writer, so a Lobby or
// Agent under test can have its log output folded into `go test`'s
// own output instead of going to stderr unattributed.
func TestWriter(t testing.TB) io.Writer {
	return &testWriter{t}
}

type testWriter struct {
	t testing.TB
}

func (tw *testWriter) Write(p []byte) (n int, err error) {
	tw.t.Helper()
	tw.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}
