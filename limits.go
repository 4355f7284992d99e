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

// Default resource budgets. Each can be overridden via [WithLimits];
// a zero value means unbounded.
const (
	// DefaultMaxRequestBody is the default cumulative raw body ceiling (32 MiB).
	DefaultMaxRequestBody int64 = 32 << 20

	// DefaultMaxPartBody is the default per-part decoded body ceiling (10 MiB).
	DefaultMaxPartBody int64 = 10 << 20

	// DefaultMaxParts is the default part count ceiling across all nesting levels.
	DefaultMaxParts = 256

	// DefaultMaxHeaderBytes is the default per-part budget for the boundary
	// delimiter plus header block (16 KiB).
	DefaultMaxHeaderBytes int64 = 16 << 10

	// DefaultMaxFieldValue is the default ceiling for an in-memory field value (1 MiB).
	DefaultMaxFieldValue int64 = 1 << 20

	// DefaultMaxNestingDepth is the default maximum depth of nested
	// multipart containers. Depth 0 is the top-level body.
	DefaultMaxNestingDepth = 3

	// DefaultMaxDecompressedBytes is the default per-part decompression
	// ceiling (64 MiB). See [WithMaxDecompressedBytes].
	DefaultMaxDecompressedBytes int64 = 64 << 20
)

// Limits is the immutable budget set enforced while streaming.
//
// All budgets are enforced incrementally, not after buffering: the parser
// aborts the instant a budget would be exceeded, leaving the rest of the
// source unread. A zero value disables the corresponding budget.
//
// MaxRequestBody and MaxParts are cumulative across the whole request
// including nested containers; the remaining budgets reset for each part.
type Limits struct {
	MaxRequestBody  int64 `validate:"gte=0"` // Raw bytes read from the source
	MaxPartBody     int64 `validate:"gte=0"` // Decoded bytes per part
	MaxParts        int   `validate:"gte=0"` // Parts seen, all levels combined
	MaxHeaderBytes  int64 `validate:"gte=0"` // Boundary + header bytes per part
	MaxFieldValue   int64 `validate:"gte=0"` // In-memory field value bytes
	MaxNestingDepth int   `validate:"gte=0"` // Nested container depth
}

// DefaultLimits returns the default budget set.
func DefaultLimits() Limits {
	return Limits{
		MaxRequestBody:  DefaultMaxRequestBody,
		MaxPartBody:     DefaultMaxPartBody,
		MaxParts:        DefaultMaxParts,
		MaxHeaderBytes:  DefaultMaxHeaderBytes,
		MaxFieldValue:   DefaultMaxFieldValue,
		MaxNestingDepth: DefaultMaxNestingDepth,
	}
}

// limitKind selects which budget a consume call charges.
type limitKind int

const (
	limitRequestBody limitKind = iota
	limitPartBody
	limitPartCount
	limitHeaderBytes
	limitFieldValue
)

// errorKind maps a violated budget to its failure kind.
func (k limitKind) errorKind() Kind {
	switch k {
	case limitRequestBody:
		return KindRequestBodyTooLarge
	case limitPartCount:
		return KindTooManyParts
	case limitHeaderBytes:
		return KindHeaderTooLarge
	default:
		return KindPartBodyTooLarge
	}
}

// limitCounters tracks consumption against a Limits set for one parse
// call. One instance per request, never shared; deliberately not
// synchronized.
type limitCounters struct {
	limits Limits

	requestBody int64
	partCount   int

	// Per-part counters, reset by beginPart.
	partBody    int64
	headerBytes int64
	fieldValue  int64
}

func newLimitCounters(l Limits) *limitCounters {
	return &limitCounters{limits: l}
}

// beginPart resets the per-part counters for the next part.
func (c *limitCounters) beginPart() {
	c.partBody = 0
	c.headerBytes = 0
	c.fieldValue = 0
}

// tryConsume charges n units against the budget for kind. It returns
// false the instant the configured limit would be exceeded; the caller
// must treat false as fatal for the whole request.
func (c *limitCounters) tryConsume(kind limitKind, n int64) bool {
	switch kind {
	case limitRequestBody:
		c.requestBody += n
		return c.within(c.requestBody, c.limits.MaxRequestBody)
	case limitPartBody:
		c.partBody += n
		return c.within(c.partBody, c.limits.MaxPartBody)
	case limitPartCount:
		c.partCount += int(n)
		return c.limits.MaxParts == 0 || c.partCount <= c.limits.MaxParts
	case limitHeaderBytes:
		c.headerBytes += n
		return c.within(c.headerBytes, c.limits.MaxHeaderBytes)
	case limitFieldValue:
		c.fieldValue += n
		return c.within(c.fieldValue, c.limits.MaxFieldValue)
	default:
		return false
	}
}

func (c *limitCounters) within(used, max int64) bool {
	return max == 0 || used <= max
}
