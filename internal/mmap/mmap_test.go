// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmap

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestHandle(t *testing.T) {
	t.Run("nil-handle", func(t *testing.T) {
		var h *Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		err = h.Close()
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid close error: %+v", err)
		}
	})
	t.Run("nil-data", func(t *testing.T) {
		var h Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		err = h.Close()
		if err != nil {
			t.Fatalf("error closing nil-data handle: %+v", err)
		}
	})
}

func TestOpen(t *testing.T) {
	tmp, err := os.MkdirTemp("", "depfet-mmap-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	t.Run("file", func(t *testing.T) {
		want := []byte("0123456789abcdef")
		fname := filepath.Join(tmp, "data.raw")
		err := os.WriteFile(fname, want, 0644)
		if err != nil {
			t.Fatalf("could not create file: %+v", err)
		}

		h, err := Open(fname)
		if err != nil {
			t.Fatalf("could not mmap file: %+v", err)
		}
		defer h.Close()

		if got, want := h.Len(), len(want); got != want {
			t.Fatalf("invalid length: got=%d, want=%d", got, want)
		}
		all := make([]byte, len(want))
		_, err = h.ReadAt(all, 0)
		if err != nil {
			t.Fatalf("could not read file: %+v", err)
		}
		if !bytes.Equal(all, want) {
			t.Fatalf("invalid content: got=%q, want=%q", all, want)
		}

		p := make([]byte, 4)
		n, err := h.ReadAt(p, 14)
		if !errors.Is(err, io.EOF) {
			t.Fatalf("invalid read-at error: %+v", err)
		}
		if got, want := string(p[:n]), "ef"; got != want {
			t.Fatalf("invalid read-at: got=%q, want=%q", got, want)
		}

		_, err = h.ReadAt(p, 20)
		if err == nil {
			t.Fatalf("expected an error for an out of range offset")
		}

		err = h.Close()
		if err != nil {
			t.Fatalf("could not close handle: %+v", err)
		}
		if h.Len() != 0 {
			t.Fatalf("closed handle should be empty")
		}
	})

	t.Run("empty", func(t *testing.T) {
		fname := filepath.Join(tmp, "empty.raw")
		err := os.WriteFile(fname, nil, 0644)
		if err != nil {
			t.Fatalf("could not create file: %+v", err)
		}
		h, err := Open(fname)
		if err != nil {
			t.Fatalf("could not mmap empty file: %+v", err)
		}
		if h.Len() != 0 {
			t.Fatalf("invalid length: %d", h.Len())
		}
		err = h.Close()
		if err != nil {
			t.Fatalf("could not close handle: %+v", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Open(filepath.Join(tmp, "not-there.raw"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("invalid error: %+v", err)
		}
	})
}
