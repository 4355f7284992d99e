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
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the category of a parse failure.
//
// Every failure surfaced by [Parser.Parse] that originates inside the
// parser carries exactly one Kind. Kinds are stable and suitable for
// programmatic handling; messages are not.
type Kind int

const (
	// KindUnknown is the zero value and never produced by the parser.
	KindUnknown Kind = iota

	// KindMissingBoundary indicates the Content-Type carried no usable
	// boundary parameter, or the body's multipart framing was malformed.
	KindMissingBoundary

	// KindUnsupportedContentType indicates the request (or a part, when a
	// rule restricts part content types) declared a content type outside
	// the configured allow set.
	KindUnsupportedContentType

	// KindMissingContentDisposition indicates a part without a
	// Content-Disposition header naming it. Rules cannot be applied to an
	// unnamed part, so this is fatal for the request.
	KindMissingContentDisposition

	// KindHeaderTooLarge indicates a part's header block exceeded the
	// configured per-part header budget.
	KindHeaderTooLarge

	// KindRequestBodyTooLarge indicates the cumulative raw body exceeded
	// MaxRequestBody. The source stream is abandoned mid-read.
	KindRequestBodyTooLarge

	// KindPartBodyTooLarge indicates a single part's decoded body exceeded
	// MaxPartBody, or a field value exceeded MaxFieldValue.
	KindPartBodyTooLarge

	// KindTooManyParts indicates the part count exceeded MaxParts.
	KindTooManyParts

	// KindUnsupportedEncoding indicates a part declared a Content-Encoding
	// outside the configured allow set, or the encoded data could not be
	// decoded as the declared encoding.
	KindUnsupportedEncoding

	// KindDecompressedTooLarge indicates a part expanded past
	// MaxDecompressedBytes while being decompressed. This is the
	// decompression-bomb guard firing.
	KindDecompressedTooLarge

	// KindNestingTooDeep indicates a nested multipart container would
	// exceed MaxNestingDepth.
	KindNestingTooDeep

	// KindUnknownPartRejected indicates a part name matched no rule in its
	// scope while WithRejectUnknownParts is enabled.
	KindUnknownPartRejected

	// KindDuplicatePart indicates a second part with a name whose rule is
	// marked single-occurrence.
	KindDuplicatePart

	// KindMissingRequiredPart indicates a required rule had no matching
	// part in its scope once the container was fully read.
	KindMissingRequiredPart

	// KindCancelled indicates the context was cancelled during parsing.
	// No further bytes are read from the source once observed.
	KindCancelled

	// KindStorageFailure indicates a filesystem error while materializing
	// a part to disk. Unlike the other kinds this is an operational
	// failure, not a client error.
	KindStorageFailure
)

// String returns the snake_case identifier for the kind.
func (k Kind) String() string {
	switch k {
	case KindMissingBoundary:
		return "missing_boundary"
	case KindUnsupportedContentType:
		return "unsupported_content_type"
	case KindMissingContentDisposition:
		return "missing_content_disposition"
	case KindHeaderTooLarge:
		return "header_too_large"
	case KindRequestBodyTooLarge:
		return "request_body_too_large"
	case KindPartBodyTooLarge:
		return "part_body_too_large"
	case KindTooManyParts:
		return "too_many_parts"
	case KindUnsupportedEncoding:
		return "unsupported_encoding"
	case KindDecompressedTooLarge:
		return "decompressed_too_large"
	case KindNestingTooDeep:
		return "nesting_too_deep"
	case KindUnknownPartRejected:
		return "unknown_part_rejected"
	case KindDuplicatePart:
		return "duplicate_part"
	case KindMissingRequiredPart:
		return "missing_required_part"
	case KindCancelled:
		return "cancelled"
	case KindStorageFailure:
		return "storage_failure"
	default:
		return "unknown"
	}
}

// Static errors for parser construction and payload access.
var (
	ErrBodyNil          = errors.New("request body is nil")
	ErrFileNotFound     = errors.New("no file for field name")
	ErrNoFilesFound     = errors.New("no files for field name")
	ErrEmptyRuleName    = errors.New("rule name must not be empty")
	ErrDuplicateRule    = errors.New("duplicate rule name in scope")
	ErrInvalidLimits    = errors.New("invalid limits")
	ErrInvalidEncoding  = errors.New("unrecognized content encoding in allow set")
	ErrPayloadDiscarded = errors.New("payload already cleaned up")
)

// ParseError is the structured failure returned by [Parser.Parse].
//
// Use [errors.As] to inspect it:
//
//	var perr *formdata.ParseError
//	if errors.As(err, &perr) {
//	    http.Error(w, perr.Error(), perr.HTTPStatus())
//	}
type ParseError struct {
	Kind   Kind     // Failure category
	Part   string   // Part name, when the failure is tied to one part
	Scope  []string // Enclosing container names, outermost first
	Reason string   // Human-readable detail
	Err    error    // Underlying error, if any
}

// Error returns a formatted message including part and scope context.
func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("formdata: ")
	b.WriteString(e.Kind.String())
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Part != "" {
		fmt.Fprintf(&b, " (part %q", e.Part)
		if len(e.Scope) > 0 {
			fmt.Fprintf(&b, " in %s", strings.Join(e.Scope, "/"))
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error for errors.Is/As compatibility.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// HTTPStatus implements rivaas.dev/errors.ErrorType.
//
// Content and structure violations map to 4xx, resource-limit violations
// to 413, cancellation to 499 (client closed request), and storage
// failures to 500.
func (e *ParseError) HTTPStatus() int {
	switch e.Kind {
	case KindUnsupportedContentType, KindUnsupportedEncoding:
		return 415
	case KindHeaderTooLarge, KindRequestBodyTooLarge, KindPartBodyTooLarge,
		KindTooManyParts, KindDecompressedTooLarge:
		return 413
	case KindCancelled:
		return 499
	case KindStorageFailure:
		return 500
	default:
		return 400
	}
}

// Code implements rivaas.dev/errors.ErrorCode.
func (e *ParseError) Code() string {
	return e.Kind.String()
}

// errKind extracts the Kind from err, or KindUnknown when err is not a
// ParseError.
func errKind(err error) Kind {
	var perr *ParseError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindUnknown
}
