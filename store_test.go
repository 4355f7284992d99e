// Copyright 2026 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build !integration

package formdata

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SHA256(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("hash me "), 1024)
	sum := sha256.Sum256(content)
	want := hex.EncodeToString(sum[:])

	t.Run("digest of a disk-stored part", func(t *testing.T) {
		t.Parallel()

		parser := MustNew(
			WithRules(Rule{Name: "upload", StoreToDisk: true}),
			WithUploadDir(t.TempDir()),
			WithSHA256(true),
		)

		b := NewBodyBuilder()
		b.File("upload", "data.bin", "application/octet-stream", content)
		body, contentType, err := b.Close()
		require.NoError(t, err)

		payload, err := parseBytes(t, parser, body, contentType)
		require.NoError(t, err)
		defer payload.Cleanup()

		file, err := payload.(*Form).File("upload")
		require.NoError(t, err)
		assert.Equal(t, want, file.SHA256)
	})

	t.Run("digest of an in-memory part", func(t *testing.T) {
		t.Parallel()

		parser := MustNew(WithSHA256(true))

		b := NewBodyBuilder()
		b.File("upload", "data.bin", "application/octet-stream", content)
		body, contentType, err := b.Close()
		require.NoError(t, err)

		payload, err := parseBytes(t, parser, body, contentType)
		require.NoError(t, err)
		defer payload.Cleanup()

		file, err := payload.(*Form).File("upload")
		require.NoError(t, err)
		assert.Equal(t, want, file.SHA256)
	})

	t.Run("no digest unless enabled", func(t *testing.T) {
		t.Parallel()

		b := NewBodyBuilder()
		b.Field("plain", "value")
		body, contentType, err := b.Close()
		require.NoError(t, err)

		payload, err := parseBytes(t, MustNew(), body, contentType)
		require.NoError(t, err)
		defer payload.Cleanup()
		assert.Empty(t, payload.Parts()[0].SHA256)
	})
}

func TestStore_UploadDir(t *testing.T) {
	t.Parallel()

	t.Run("directory is created on demand", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "not", "yet", "created")
		parser := MustNew(
			WithRules(Rule{Name: "upload", StoreToDisk: true}),
			WithUploadDir(dir),
		)

		b := NewBodyBuilder()
		b.File("upload", "a.txt", "text/plain", []byte("content"))
		body, contentType, err := b.Close()
		require.NoError(t, err)

		payload, err := parseBytes(t, parser, body, contentType)
		require.NoError(t, err)
		defer payload.Cleanup()

		file, err := payload.(*Form).File("upload")
		require.NoError(t, err)
		assert.Equal(t, dir, filepath.Dir(file.TempPath()))
	})

	t.Run("temp file names are unique per part", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		parser := MustNew(
			WithRules(Rule{Name: "upload", StoreToDisk: true}),
			WithUploadDir(dir),
		)

		b := NewBodyBuilder()
		b.File("upload", "a.txt", "text/plain", []byte("one"))
		b.File("upload", "b.txt", "text/plain", []byte("two"))
		body, contentType, err := b.Close()
		require.NoError(t, err)

		payload, err := parseBytes(t, parser, body, contentType)
		require.NoError(t, err)
		defer payload.Cleanup()

		files, err := payload.(*Form).Files("upload")
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.NotEqual(t, files[0].TempPath(), files[1].TempPath())
	})

	t.Run("unwritable upload root is a storage failure", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		blocked := filepath.Join(dir, "blocked")
		require.NoError(t, os.WriteFile(blocked, []byte("a file, not a dir"), 0o600))

		parser := MustNew(
			WithRules(Rule{Name: "upload", StoreToDisk: true}),
			WithUploadDir(filepath.Join(blocked, "sub")),
		)

		b := NewBodyBuilder()
		b.File("upload", "a.txt", "text/plain", []byte("content"))
		body, contentType, err := b.Close()
		require.NoError(t, err)

		_, err = parseBytes(t, parser, body, contentType)
		perr := requireKind(t, err, KindStorageFailure)
		assert.Equal(t, 500, perr.HTTPStatus())
	})
}

func TestCopyBody(t *testing.T) {
	t.Parallel()

	t.Run("hashes alongside the copy", func(t *testing.T) {
		t.Parallel()

		h := sha256.New()
		var dst bytes.Buffer
		n, err := copyBody(&dst, strings.NewReader("payload"), h)
		require.NoError(t, err)

		assert.Equal(t, int64(7), n)
		assert.Equal(t, "payload", dst.String())

		sum := sha256.Sum256([]byte("payload"))
		assert.Equal(t, sum[:], h.Sum(nil))
	})

	t.Run("write failures carry the writeError marker", func(t *testing.T) {
		t.Parallel()

		_, err := copyBody(&failingWriter{}, strings.NewReader("data"), nil)
		require.Error(t, err)

		var werr *writeError
		require.ErrorAs(t, err, &werr)
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, os.ErrPermission
}
