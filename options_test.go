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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		parser, err := New()
		require.NoError(t, err)

		assert.Contains(t, parser.cfg.allowedTypes, ContentTypeFormData)
		assert.Contains(t, parser.cfg.allowedTypes, ContentTypeMixed)
		assert.Equal(t, DefaultLimits(), parser.cfg.limits)
		assert.Equal(t, int64(DefaultMaxDecompressedBytes), parser.cfg.maxDecompressed)
		assert.False(t, parser.cfg.decompress)
		assert.False(t, parser.cfg.rejectUnknown)
		assert.Nil(t, parser.cfg.allowedEnc, "any encoding accepted by default")
		assert.True(t, parser.rules.empty())
	})

	t.Run("negative limit is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := New(WithLimits(Limits{MaxPartBody: -1}))
		require.ErrorIs(t, err, ErrInvalidLimits)
	})

	t.Run("negative decompression ceiling is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := New(WithMaxDecompressedBytes(-1))
		require.ErrorIs(t, err, ErrInvalidLimits)
	})

	t.Run("unrecognized encoding in the allow set is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := New(WithAllowedEncodings("lzma"))
		require.ErrorIs(t, err, ErrInvalidEncoding)
	})

	t.Run("rule validation failures surface", func(t *testing.T) {
		t.Parallel()

		_, err := New(WithRules(Rule{Name: ""}))
		require.ErrorIs(t, err, ErrEmptyRuleName)

		_, err = New(WithRules(Rule{Name: "a"}, Rule{Name: "a"}))
		require.ErrorIs(t, err, ErrDuplicateRule)
	})

	t.Run("nil logger keeps the nop default", func(t *testing.T) {
		t.Parallel()

		parser, err := New(WithLogger(nil))
		require.NoError(t, err)
		require.NotNil(t, parser.cfg.logger)
	})

	t.Run("custom logger is honored", func(t *testing.T) {
		t.Parallel()

		logger := zaptest.NewLogger(t)
		parser, err := New(WithLogger(logger))
		require.NoError(t, err)
		assert.Same(t, logger, parser.cfg.logger)
	})
}

func TestMustNew(t *testing.T) {
	t.Parallel()

	t.Run("returns the parser on success", func(t *testing.T) {
		t.Parallel()
		assert.NotNil(t, MustNew())
	})

	t.Run("panics on invalid configuration", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			MustNew(WithLimits(Limits{MaxParts: -5}))
		})
	})
}

func TestWithAllowedContentTypes(t *testing.T) {
	t.Parallel()

	parser := MustNew(WithAllowedContentTypes(" Multipart/Form-Data "))

	assert.Contains(t, parser.cfg.allowedTypes, ContentTypeFormData)
	assert.NotContains(t, parser.cfg.allowedTypes, ContentTypeMixed)
}

func TestWithAllowedEncodings(t *testing.T) {
	t.Parallel()

	parser := MustNew(WithAllowedEncodings("GZIP", " br "))

	assert.Contains(t, parser.cfg.allowedEnc, encodingGzip)
	assert.Contains(t, parser.cfg.allowedEnc, encodingBrotli)
	assert.Contains(t, parser.cfg.allowedEnc, encodingIdentity, "identity is always in the set")
	assert.NotContains(t, parser.cfg.allowedEnc, encodingDeflate)
}
