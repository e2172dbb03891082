// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package crc32_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/go-lpc/depfet/internal/crc32"
)

func TestCRC32(t *testing.T) {
	for _, tc := range []struct {
		raw  []byte
		want uint32
	}{
		{
			raw:  nil,
			want: 0,
		},
		{
			raw:  []byte{0x00},
			want: 0,
		},
		{
			raw:  []byte{0x01},
			want: crc32.DHH,
		},
		{
			raw:  []byte("123456789"),
			want: 0x89a1897f,
		},
	} {
		t.Run(fmt.Sprintf("0x%x", tc.want), func(t *testing.T) {
			crc := crc32.New(nil)
			if got, want := crc.BlockSize(), 1; got != want {
				t.Fatalf("invalid crc32 block size: got=%d, want=%d", got, want)
			}

			crc.Reset()

			_, err := crc.Write(tc.raw)
			if err != nil {
				t.Fatalf("could not write crc32 hash: %+v", err)
			}

			if got, want := crc.Sum32(), tc.want; got != want {
				t.Fatalf("invalid crc32 checksum: got=0x%x, want=0x%x",
					got, want,
				)
			}

			if got, want := crc32.Checksum(tc.raw), tc.want; got != want {
				t.Fatalf("invalid crc32 checksum: got=0x%x, want=0x%x",
					got, want,
				)
			}

			asBytes := func(v uint32) []byte {
				buf := make([]byte, crc.Size())
				binary.BigEndian.PutUint32(buf, v)
				return buf
			}

			if got, want := crc.Sum(nil), asBytes(tc.want); !bytes.Equal(got, want) {
				t.Fatalf("invalid crc32 checksum: got=0x%x, want=0x%x",
					got, want,
				)
			}
		})
	}
}

func TestCRC32Stream(t *testing.T) {
	raw := []byte("the quick brown fox jumps over the lazy dog")
	want := crc32.Checksum(raw)

	for i := range raw {
		crc := crc32.New(nil)
		_, _ = crc.Write(raw[:i])
		_, _ = crc.Write(raw[i:])
		if got := crc.Sum32(); got != want {
			t.Fatalf("split=%d: invalid crc32 checksum: got=0x%x, want=0x%x", i, got, want)
		}
	}
}
