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
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
)

// BodyBuilder assembles multipart bodies for tests and examples,
// including nested containers. It wraps [multipart.Writer] and defers
// error reporting to [BodyBuilder.Close].
//
// Example:
//
//	b := formdata.NewBodyBuilder()
//	b.Field("title", "hello")
//	b.File("upload", "a.txt", "text/plain", []byte("content"))
//	b.Container("group", formdata.ContentTypeMixed, func(nested *formdata.BodyBuilder) {
//	    nested.Field("text", "inner")
//	})
//	body, contentType, err := b.Close()
type BodyBuilder struct {
	buf bytes.Buffer
	w   *multipart.Writer
	err error
}

// NewBodyBuilder returns a builder with a random boundary.
func NewBodyBuilder() *BodyBuilder {
	b := &BodyBuilder{}
	b.w = multipart.NewWriter(&b.buf)
	return b
}

// Boundary returns the builder's boundary token.
func (b *BodyBuilder) Boundary() string {
	return b.w.Boundary()
}

// ContentType returns the Content-Type header value for the built body,
// as multipart/form-data.
func (b *BodyBuilder) ContentType() string {
	return b.w.FormDataContentType()
}

// MixedContentType returns the Content-Type header value for the built
// body, as multipart/mixed.
func (b *BodyBuilder) MixedContentType() string {
	return "multipart/mixed; boundary=" + b.w.Boundary()
}

// Field appends a plain text field part.
func (b *BodyBuilder) Field(name, value string) *BodyBuilder {
	if b.err != nil {
		return b
	}
	w, err := b.w.CreateFormField(name)
	if err == nil {
		_, err = io.WriteString(w, value)
	}
	b.err = err
	return b
}

// File appends a file part with the given content type.
func (b *BodyBuilder) File(name, fileName, contentType string, content []byte) *BodyBuilder {
	header := textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name=%q; filename=%q`, name, fileName)},
		"Content-Type":        {contentType},
	}
	return b.Part(header, content)
}

// EncodedPart appends a part carrying pre-encoded content with a
// Content-Encoding header.
func (b *BodyBuilder) EncodedPart(name, contentType, encoding string, content []byte) *BodyBuilder {
	header := textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name=%q`, name)},
		"Content-Type":        {contentType},
		"Content-Encoding":    {encoding},
	}
	return b.Part(header, content)
}

// Part appends a part with fully custom headers.
func (b *BodyBuilder) Part(header textproto.MIMEHeader, content []byte) *BodyBuilder {
	if b.err != nil {
		return b
	}
	w, err := b.w.CreatePart(header)
	if err == nil {
		_, err = w.Write(content)
	}
	b.err = err
	return b
}

// Container appends a nested multipart container part. mediaType is the
// nested container's media type, usually [ContentTypeMixed]. fill
// populates the nested body through a fresh builder.
func (b *BodyBuilder) Container(name, mediaType string, fill func(nested *BodyBuilder)) *BodyBuilder {
	if b.err != nil {
		return b
	}

	nested := NewBodyBuilder()
	fill(nested)
	content, _, err := nested.Close()
	if err != nil {
		b.err = err
		return b
	}

	header := textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name=%q`, name)},
		"Content-Type":        {fmt.Sprintf("%s; boundary=%s", mediaType, nested.Boundary())},
	}
	return b.Part(header, content)
}

// Close finalizes the body and returns its bytes together with the
// multipart/form-data content type. Use [BodyBuilder.MixedContentType]
// when the body should be presented as multipart/mixed instead.
func (b *BodyBuilder) Close() ([]byte, string, error) {
	if b.err != nil {
		return nil, "", b.err
	}
	if err := b.w.Close(); err != nil {
		return nil, "", err
	}
	return b.buf.Bytes(), b.ContentType(), nil
}
