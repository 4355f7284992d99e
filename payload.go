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

package formdata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Part is the materialized result of one multipart segment.
//
// Exactly one of the following holds after parsing:
//   - the body is buffered in memory ([Part.InMemory] is true),
//   - the body was streamed to a temp file ([Part.TempPath] is non-empty),
//   - the part was a nested container ([Part.Nested] is non-nil).
//
// Parts are owned by their enclosing [Payload]; temp files live until the
// payload's [Payload.Cleanup] runs (or until the parser aborts, which
// cleans up on its own).
type Part struct {
	// Name is the part's Content-Disposition name, as received.
	Name string

	// ContentType is the part's declared media type without parameters,
	// defaulting to application/octet-stream.
	ContentType string

	// ContentEncoding is the normalized Content-Encoding token,
	// "identity" when absent.
	ContentEncoding string

	// FileName is the sanitized base name from the Content-Disposition
	// filename parameter, empty for plain fields. Path separators and
	// traversal sequences are stripped.
	FileName string

	// Size is the decoded body length in bytes. Zero for containers.
	Size int64

	// SHA256 is the lowercase hex digest of the decoded body, empty
	// unless hashing was enabled. Empty for containers.
	SHA256 string

	// Nested holds the recursively parsed payload when this part was
	// itself a multipart container.
	Nested Payload

	value    []byte
	tempPath string
	inMemory bool
}

// InMemory reports whether the part's body is buffered in memory.
func (p *Part) InMemory() bool {
	return p.inMemory
}

// Value returns the in-memory body, or nil when the part was stored to
// disk or is a container.
func (p *Part) Value() []byte {
	return p.value
}

// String returns the in-memory body as a string.
func (p *Part) String() string {
	return string(p.value)
}

// TempPath returns the on-disk location of the part's body, or "" when
// buffered in memory or already cleaned up.
func (p *Part) TempPath() string {
	return p.tempPath
}

// Open returns a reader over the part's decoded body, regardless of the
// storage backend. The caller must close it.
func (p *Part) Open() (io.ReadCloser, error) {
	if p.Nested != nil {
		return nil, fmt.Errorf("formdata: part %q is a nested container", p.Name)
	}
	if p.inMemory {
		return io.NopCloser(bytes.NewReader(p.value)), nil
	}
	if p.tempPath == "" {
		return nil, fmt.Errorf("formdata: part %q: %w", p.Name, ErrPayloadDiscarded)
	}
	return os.Open(p.tempPath)
}

// Save copies the part's body to path, creating parent directories as
// needed.
func (p *Part) Save(path string) error {
	src, err := p.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// discard removes the part's temp file, if any, and recurses into nested
// payloads. Removal is idempotent.
func (p *Part) discard() error {
	var errs []error
	if p.tempPath != "" {
		if err := os.Remove(p.tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		p.tempPath = ""
	}
	if p.Nested != nil {
		if err := p.Nested.Cleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sanitizeFileName reduces a client-supplied filename to a safe base
// name. Traversal sequences and separators from either slash convention
// are dropped.
func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		return ""
	}
	return name
}

// Payload is the parsed request body handed to the caller on success.
//
// The top-level content type selects the concrete variant: [*Form] for
// multipart/form-data, [*Mixed] for multipart/mixed. Once Parse returns
// a Payload, temp-file ownership transfers to the caller; call Cleanup
// when the handler is done with it.
type Payload interface {
	// Parts returns every part in this payload in received order.
	Parts() []*Part

	// Cleanup removes all temp files referenced by the payload,
	// including nested containers. It is idempotent.
	Cleanup() error
}

// Form is the payload variant for multipart/form-data: named fields and
// files. Lookup by name is exact (parts keep their received name;
// rule matching, not lookup, is case-insensitive). First-seen name
// order is preserved for diagnostics.
type Form struct {
	fields map[string][]string
	files  map[string][]*Part
	names  []string // first-seen order across fields and files
	parts  []*Part  // received order
}

func newForm() *Form {
	return &Form{
		fields: make(map[string][]string),
		files:  make(map[string][]*Part),
	}
}

func (f *Form) addField(p *Part) {
	if _, seen := f.fields[p.Name]; !seen {
		if _, seenFile := f.files[p.Name]; !seenFile {
			f.names = append(f.names, p.Name)
		}
	}
	f.fields[p.Name] = append(f.fields[p.Name], p.String())
	f.parts = append(f.parts, p)
}

func (f *Form) addFile(p *Part) {
	if _, seen := f.files[p.Name]; !seen {
		if _, seenField := f.fields[p.Name]; !seenField {
			f.names = append(f.names, p.Name)
		}
	}
	f.files[p.Name] = append(f.files[p.Name], p)
	f.parts = append(f.parts, p)
}

// Get returns the first field value for the name, or "".
func (f *Form) Get(name string) string {
	vals := f.fields[name]
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// GetAll returns all field values for the name.
func (f *Form) GetAll(name string) []string {
	return f.fields[name]
}

// Has reports whether a field exists for the name.
func (f *Form) Has(name string) bool {
	return len(f.fields[name]) > 0
}

// File returns the first file part for the name.
// Returns [ErrFileNotFound] when none exists.
func (f *Form) File(name string) (*Part, error) {
	parts := f.files[name]
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrFileNotFound, name)
	}
	return parts[0], nil
}

// Files returns all file parts for the name.
// Returns [ErrNoFilesFound] when none exist.
func (f *Form) Files(name string) ([]*Part, error) {
	parts := f.files[name]
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoFilesFound, name)
	}
	return parts, nil
}

// HasFile reports whether at least one file exists for the name.
func (f *Form) HasFile(name string) bool {
	return len(f.files[name]) > 0
}

// Names returns field and file names in first-seen order.
func (f *Form) Names() []string {
	return f.names
}

// Parts implements [Payload].
func (f *Form) Parts() []*Part {
	return f.parts
}

// Cleanup implements [Payload].
func (f *Form) Cleanup() error {
	var errs []error
	for _, p := range f.parts {
		if err := p.discard(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Mixed is the payload variant for multipart/mixed: an ordered part
// sequence, preserved exactly as received.
type Mixed struct {
	parts []*Part
}

func (m *Mixed) add(p *Part) {
	m.parts = append(m.parts, p)
}

// Parts implements [Payload].
func (m *Mixed) Parts() []*Part {
	return m.parts
}

// Len returns the number of parts.
func (m *Mixed) Len() int {
	return len(m.parts)
}

// Part returns the i'th part in received order.
func (m *Mixed) Part(i int) *Part {
	return m.parts[i]
}

// Cleanup implements [Payload].
func (m *Mixed) Cleanup() error {
	var errs []error
	for _, p := range m.parts {
		if err := p.discard(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
