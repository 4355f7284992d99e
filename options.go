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
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Multipart media types handled by the parser.
const (
	ContentTypeFormData = "multipart/form-data"
	ContentTypeMixed    = "multipart/mixed"
)

// config is the validated, immutable configuration behind a [Parser].
// It is built once at [New] and shared read-only across requests.
type config struct {
	allowedTypes    map[string]struct{} // lowercase request media types
	uploadDir       string
	computeSHA256   bool
	decompress      bool
	allowedEnc      map[string]struct{} // lowercase encodings, nil = any
	maxDecompressed int64
	limits          Limits
	rules           []Rule
	rejectUnknown   bool
	logger          *zap.Logger
}

// Option configures a [Parser].
type Option func(*config)

// WithAllowedContentTypes sets the request content types the parser
// accepts. The default accepts multipart/form-data and multipart/mixed.
//
// Example:
//
//	formdata.New(formdata.WithAllowedContentTypes(formdata.ContentTypeFormData))
func WithAllowedContentTypes(types ...string) Option {
	return func(c *config) {
		c.allowedTypes = make(map[string]struct{}, len(types))
		for _, t := range types {
			c.allowedTypes[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
		}
	}
}

// WithUploadDir sets the directory that receives temp files for parts
// stored to disk. The directory is created on demand. The default is the
// system temp directory.
func WithUploadDir(dir string) Option {
	return func(c *config) {
		c.uploadDir = dir
	}
}

// WithSHA256 enables computing a streaming SHA-256 digest of every
// stored part body, exposed via [Part.SHA256].
func WithSHA256(enabled bool) Option {
	return func(c *config) {
		c.computeSHA256 = enabled
	}
}

// WithDecompression enables decoding part bodies whose Content-Encoding
// is gzip, deflate, or br. Decoded output is capped by
// [WithMaxDecompressedBytes]. When disabled, encoded bodies pass through
// untouched.
func WithDecompression(enabled bool) Option {
	return func(c *config) {
		c.decompress = enabled
	}
}

// WithAllowedEncodings restricts which Content-Encoding tokens parts may
// declare. identity is always permitted. A part declaring an encoding
// outside the set fails the request with unsupported_encoding. The
// default permits any encoding.
//
// Example:
//
//	formdata.New(
//	    formdata.WithDecompression(true),
//	    formdata.WithAllowedEncodings("gzip", "br"),
//	)
func WithAllowedEncodings(encodings ...string) Option {
	return func(c *config) {
		c.allowedEnc = make(map[string]struct{}, len(encodings)+1)
		c.allowedEnc[encodingIdentity] = struct{}{}
		for _, e := range encodings {
			c.allowedEnc[normalizeEncoding(e)] = struct{}{}
		}
	}
}

// WithMaxDecompressedBytes sets the per-part decompression ceiling.
// Zero disables the cap. The default is [DefaultMaxDecompressedBytes].
func WithMaxDecompressedBytes(n int64) Option {
	return func(c *config) {
		c.maxDecompressed = n
	}
}

// WithLimits replaces the whole budget set. See [Limits] and
// [DefaultLimits].
func WithLimits(l Limits) Option {
	return func(c *config) {
		c.limits = l
	}
}

// WithRules declares the expected top-level parts. Nested scopes are
// expressed through [Rule.Nested]. See [Rule] for scoping semantics.
func WithRules(rules ...Rule) Option {
	return func(c *config) {
		c.rules = rules
	}
}

// WithRejectUnknownParts switches unknown-part policy to strict: a part
// whose name matches no rule in its scope fails the request with
// unknown_part_rejected. The default is permissive (unknown parts pass
// through unvalidated).
func WithRejectUnknownParts(enabled bool) Option {
	return func(c *config) {
		c.rejectUnknown = enabled
	}
}

// WithLogger sets a logger for parse tracing and operational warnings
// (storage and cleanup failures). The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func defaultConfig() *config {
	return &config{
		allowedTypes: map[string]struct{}{
			ContentTypeFormData: {},
			ContentTypeMixed:    {},
		},
		uploadDir:       os.TempDir(),
		maxDecompressed: DefaultMaxDecompressedBytes,
		limits:          DefaultLimits(),
		logger:          zap.NewNop(),
	}
}

// structValidate checks struct tags on configuration values once, at
// construction time.
var structValidate = validator.New(validator.WithRequiredStructEnabled())

// validate checks the assembled configuration. It returns the compiled
// rule set so New can keep it on the Parser.
func (c *config) validate() (*ruleSet, error) {
	if err := structValidate.Struct(c.limits); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLimits, err)
	}
	if c.maxDecompressed < 0 {
		return nil, fmt.Errorf("%w: max decompressed bytes must not be negative", ErrInvalidLimits)
	}
	for enc := range c.allowedEnc {
		if _, ok := knownEncodings[enc]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEncoding, enc)
		}
	}

	rules, err := compileRules(c.rules, nil)
	if err != nil {
		return nil, err
	}
	for i := range c.rules {
		if err := structValidate.Struct(c.rules[i]); err != nil {
			return nil, fmt.Errorf("rule %q: %w", c.rules[i].Name, err)
		}
	}
	return rules, nil
}
