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

// Package formdata parses and validates streamed multipart request
// bodies (multipart/form-data and nested multipart/mixed) into
// resource-bounded payloads.
//
// The package treats the body as an untrusted byte stream: every budget
// (request size, part size, part count, header size, field value size,
// nesting depth, decompressed size) is enforced incrementally while
// streaming, never after buffering. Partial failures clean up any temp
// files already written and never leave counters inconsistent.
//
// # Quick Start
//
// Configure a [Parser] once per route and reuse it across requests:
//
//	parser := formdata.MustNew(
//	    formdata.WithRules(
//	        formdata.Rule{Name: "meta", Required: true},
//	        formdata.Rule{Name: "upload", StoreToDisk: true, Single: true},
//	    ),
//	    formdata.WithUploadDir("/var/spool/uploads"),
//	)
//
//	payload, err := parser.ParseRequest(r)
//	if err != nil {
//	    var perr *formdata.ParseError
//	    if errors.As(err, &perr) {
//	        http.Error(w, perr.Error(), perr.HTTPStatus())
//	    }
//	    return
//	}
//	defer payload.Cleanup()
//
// # Rules and Scopes
//
// Expected parts are described by a [Rule] tree. Rules nest: a rule's
// Nested slice applies only inside the container part with that rule's
// name, so the same part name can mean different things in different
// scopes. Unknown part names pass through by default; strict mode is a
// flip of [WithRejectUnknownParts].
//
// # Storage
//
// Part bodies land in memory by default. Rules with StoreToDisk stream
// to uniquely named temp files under the upload directory, optionally
// computing a SHA-256 digest on the way through ([WithSHA256]). Temp
// files created by a failed parse are always removed before the error
// returns; on success the caller owns them until [Payload.Cleanup].
//
// # Decompression
//
// With [WithDecompression] enabled, part bodies declaring
// Content-Encoding gzip, deflate, or br are decoded streaming, with the
// output capped by [WithMaxDecompressedBytes] so a small compressed
// payload can never expand past the ceiling (decompression-bomb guard).
//
// # Errors
//
// Every parser-detected failure is a [*ParseError] carrying a stable
// [Kind], the offending part and scope, and the HTTP status the caller
// should answer with.
//
// # Declarative Configuration
//
// The rivaas.dev/formdata/ruleset subpackage loads rule sets and limits
// from YAML or TOML files.
package formdata
