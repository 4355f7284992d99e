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
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFileName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"report.pdf":                  "report.pdf",
		"../../../etc/passwd":         "passwd",
		"..\\..\\Windows\\config.sys": "config.sys",
		"/absolute/path/file.txt":     "file.txt",
		"..":                          "",
		"":                            "",
		"nested/dir/name.bin":         "name.bin",
	}

	for input, want := range cases {
		assert.Equal(t, want, sanitizeFileName(input), "input %q", input)
	}
}

func TestPart_Open(t *testing.T) {
	t.Parallel()

	t.Run("in-memory part", func(t *testing.T) {
		t.Parallel()

		part := &Part{Name: "field", value: []byte("hello"), inMemory: true}
		rc, err := part.Open()
		require.NoError(t, err)
		defer rc.Close()

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("on-disk part", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "part")
		require.NoError(t, os.WriteFile(path, []byte("stored"), 0o600))

		part := &Part{Name: "upload", tempPath: path}
		rc, err := part.Open()
		require.NoError(t, err)
		defer rc.Close()

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "stored", string(data))
	})

	t.Run("container part cannot be opened", func(t *testing.T) {
		t.Parallel()

		part := &Part{Name: "group", Nested: &Mixed{}}
		_, err := part.Open()
		require.Error(t, err)
	})

	t.Run("cleaned-up part reports it", func(t *testing.T) {
		t.Parallel()

		part := &Part{Name: "gone"}
		_, err := part.Open()
		require.ErrorIs(t, err, ErrPayloadDiscarded)
	})
}

func TestPart_Save(t *testing.T) {
	t.Parallel()

	part := &Part{Name: "upload", value: []byte("saved content"), inMemory: true}
	dest := filepath.Join(t.TempDir(), "deep", "copy.bin")

	require.NoError(t, part.Save(dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "saved content", string(data))
}

func TestForm_Accessors(t *testing.T) {
	t.Parallel()

	form := newForm()
	form.addField(&Part{Name: "title", value: []byte("a"), inMemory: true})
	form.addField(&Part{Name: "tag", value: []byte("x"), inMemory: true})
	form.addField(&Part{Name: "tag", value: []byte("y"), inMemory: true})
	form.addFile(&Part{Name: "upload", FileName: "f.txt", value: []byte("data"), inMemory: true})

	assert.Equal(t, "a", form.Get("title"))
	assert.Equal(t, "", form.Get("absent"))
	assert.Equal(t, []string{"x", "y"}, form.GetAll("tag"))
	assert.True(t, form.Has("tag"))
	assert.False(t, form.Has("upload"), "files are not fields")

	assert.True(t, form.HasFile("upload"))
	file, err := form.File("upload")
	require.NoError(t, err)
	assert.Equal(t, "f.txt", file.FileName)

	_, err = form.File("absent")
	require.ErrorIs(t, err, ErrFileNotFound)
	_, err = form.Files("absent")
	require.ErrorIs(t, err, ErrNoFilesFound)

	assert.Equal(t, []string{"title", "tag", "upload"}, form.Names())
	assert.Len(t, form.Parts(), 4)
}

func TestPayload_Cleanup(t *testing.T) {
	t.Parallel()

	t.Run("removes nested temp files too", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		innerPath := filepath.Join(dir, "inner")
		outerPath := filepath.Join(dir, "outer")
		require.NoError(t, os.WriteFile(innerPath, []byte("i"), 0o600))
		require.NoError(t, os.WriteFile(outerPath, []byte("o"), 0o600))

		inner := &Mixed{}
		inner.add(&Part{Name: "deep", tempPath: innerPath})

		form := newForm()
		form.addFile(&Part{Name: "upload", tempPath: outerPath})
		form.addFile(&Part{Name: "group", Nested: inner})

		require.NoError(t, form.Cleanup())

		_, err := os.Stat(innerPath)
		assert.True(t, os.IsNotExist(err))
		_, err = os.Stat(outerPath)
		assert.True(t, os.IsNotExist(err))

		require.NoError(t, form.Cleanup(), "second cleanup is a no-op")
	})

	t.Run("in-memory payloads need no cleanup but allow it", func(t *testing.T) {
		t.Parallel()

		mixed := &Mixed{}
		mixed.add(&Part{Name: "field", value: []byte("v"), inMemory: true})
		require.NoError(t, mixed.Cleanup())
		assert.Equal(t, []byte("v"), mixed.Part(0).Value(), "values survive cleanup")
	})
}

func TestPart_ValueHelpers(t *testing.T) {
	t.Parallel()

	part := &Part{Name: "p", value: []byte("abc"), inMemory: true}
	assert.Equal(t, []byte("abc"), part.Value())
	assert.Equal(t, "abc", part.String())
	assert.True(t, part.InMemory())
	assert.Empty(t, part.TempPath())

	var buf bytes.Buffer
	rc, err := part.Open()
	require.NoError(t, err)
	_, err = buf.ReadFrom(rc)
	require.NoError(t, err)
	assert.Equal(t, "abc", buf.String())
}
