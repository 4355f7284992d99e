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
	"bufio"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Content-Encoding tokens with decoder support.
const (
	encodingIdentity = "identity"
	encodingGzip     = "gzip"
	encodingDeflate  = "deflate"
	encodingBrotli   = "br"
)

// knownEncodings lists the tokens accepted by [WithAllowedEncodings].
var knownEncodings = map[string]struct{}{
	encodingIdentity: {},
	encodingGzip:     {},
	encodingDeflate:  {},
	encodingBrotli:   {},
}

// normalizeEncoding lower-cases and trims a Content-Encoding token,
// mapping the empty token to identity.
func normalizeEncoding(declared string) string {
	enc := strings.ToLower(strings.TrimSpace(declared))
	if enc == "" {
		return encodingIdentity
	}
	return enc
}

// decodePart wraps a raw part body in the decoder for its declared
// encoding. It returns the (possibly unchanged) stream and the
// normalized encoding token.
//
// When decompression is disabled or the encoding is unrecognized, the
// source stream passes through untouched; the caller decides whether the
// encoding itself is acceptable. Recognized encodings are decoded
// streaming, with output capped at maxDecompressed: exceeding the cap
// surfaces decompressed_too_large regardless of the compressed size.
func (p *Parser) decodePart(r io.Reader, declared, partName string, scope []string) (io.Reader, string, error) {
	enc := normalizeEncoding(declared)
	if enc == encodingIdentity {
		return r, enc, nil
	}
	if !p.cfg.decompress {
		return r, enc, nil
	}

	var (
		decoded io.Reader
		err     error
	)
	switch enc {
	case encodingGzip:
		decoded, err = gzip.NewReader(r)
	case encodingDeflate:
		decoded, err = newDeflateReader(r)
	case encodingBrotli:
		decoded = brotli.NewReader(r)
	default:
		return r, enc, nil
	}
	if err != nil {
		return nil, enc, &ParseError{
			Kind:   KindUnsupportedEncoding,
			Part:   partName,
			Scope:  scope,
			Reason: "malformed " + enc + " data",
			Err:    err,
		}
	}

	guard := &bombGuard{
		r:         decoded,
		remaining: p.cfg.maxDecompressed,
		unbounded: p.cfg.maxDecompressed == 0,
		encoding:  enc,
		part:      partName,
		scope:     scope,
	}
	return guard, enc, nil
}

// newDeflateReader handles both meanings of Content-Encoding: deflate
// seen in the wild: the RFC 9110 zlib-wrapped stream and the bare
// DEFLATE stream some clients send. The zlib header is sniffed from the
// first two bytes.
func newDeflateReader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(2)
	if err != nil {
		// Too short to be either framing; let flate report it on read.
		return flate.NewReader(br), nil
	}
	// CMF/FLG check: low nibble 8 = deflate, header bytes divisible by 31.
	if head[0]&0x0f == 8 && (uint16(head[0])<<8|uint16(head[1]))%31 == 0 {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

// bombGuard caps the number of decompressed bytes produced by the
// wrapped decoder. A small compressed payload can never expand past the
// configured ceiling, whatever its advertised size.
type bombGuard struct {
	r         io.Reader
	remaining int64 // goes negative the moment the ceiling is crossed
	unbounded bool  // zero ceiling disables the guard
	encoding  string
	part      string
	scope     []string
}

func (g *bombGuard) Read(p []byte) (int, error) {
	n, err := g.r.Read(p)
	if n > 0 && !g.unbounded {
		g.remaining -= int64(n)
		if g.remaining < 0 {
			return n, &ParseError{
				Kind:   KindDecompressedTooLarge,
				Part:   g.part,
				Scope:  g.scope,
				Reason: "decompressed " + g.encoding + " output exceeds the configured ceiling",
			}
		}
	}
	if err != nil && err != io.EOF && errKind(err) == KindUnknown {
		// Corrupt compressed data discovered mid-stream.
		return n, &ParseError{
			Kind:   KindUnsupportedEncoding,
			Part:   g.part,
			Scope:  g.scope,
			Reason: "malformed " + g.encoding + " data",
			Err:    err,
		}
	}
	return n, err
}
