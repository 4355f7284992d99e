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
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// Parser is a configured multipart parsing and validation engine.
//
// Create one Parser per route at registration time with [New] or
// [MustNew]; it is immutable and safe for concurrent use. Each call to
// [Parser.Parse] owns its own counters and temp files, so concurrent
// requests never share mutable state.
//
// Example:
//
//	parser := formdata.MustNew(
//	    formdata.WithRules(
//	        formdata.Rule{Name: "meta", Required: true, ContentTypes: []string{"application/json"}},
//	        formdata.Rule{Name: "upload", StoreToDisk: true, Single: true},
//	    ),
//	    formdata.WithUploadDir("/var/spool/uploads"),
//	    formdata.WithSHA256(true),
//	)
//
//	func handle(w http.ResponseWriter, r *http.Request) {
//	    payload, err := parser.ParseRequest(r)
//	    if err != nil {
//	        var perr *formdata.ParseError
//	        if errors.As(err, &perr) {
//	            http.Error(w, perr.Error(), perr.HTTPStatus())
//	            return
//	        }
//	        http.Error(w, "bad request", http.StatusBadRequest)
//	        return
//	    }
//	    defer payload.Cleanup()
//	    // use payload
//	}
type Parser struct {
	cfg   *config
	rules *ruleSet
}

// New creates a [Parser] with the given options.
// Returns an error if the configuration is invalid (bad limits, empty or
// duplicate rule names, unrecognized encodings).
func New(opts ...Option) (*Parser, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	rules, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	return &Parser{cfg: cfg, rules: rules}, nil
}

// MustNew creates a [Parser] with the given options.
// Panics if the configuration is invalid. Use in main() or init() where
// panic on startup is acceptable.
func MustNew(opts ...Option) *Parser {
	p, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("formdata.MustNew: %v", err))
	}

	return p
}

// Parse streams body once, end to end, and returns the validated
// payload. contentType is the request's Content-Type header value
// including the boundary parameter.
//
// On success the returned [Payload] owns any temp files written; the
// caller releases them with [Payload.Cleanup]. On any failure the parser
// deletes every temp file it created before returning, and the error is
// a [*ParseError] for every condition the parser itself detects.
func (p *Parser) Parse(ctx context.Context, body io.Reader, contentType string) (Payload, error) {
	if body == nil {
		return nil, ErrBodyNil
	}
	if err := ctx.Err(); err != nil {
		return nil, &ParseError{Kind: KindCancelled, Err: err}
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, &ParseError{Kind: KindUnsupportedContentType, Reason: "malformed Content-Type", Err: err}
	}
	mediaType = strings.ToLower(mediaType)
	if _, ok := p.cfg.allowedTypes[mediaType]; !ok {
		return nil, &ParseError{Kind: KindUnsupportedContentType, Reason: fmt.Sprintf("content type %q not accepted", mediaType)}
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, &ParseError{Kind: KindMissingBoundary, Reason: "no boundary parameter in Content-Type"}
	}

	run := &parseRun{
		parser:   p,
		ctx:      ctx,
		counters: newLimitCounters(p.cfg.limits),
	}
	src := &requestReader{ctx: ctx, r: body, counters: run.counters}

	payload, err := run.parseContainer(src, mediaType, boundary, p.rules, 0)
	if err != nil {
		run.cleanup()
		return nil, err
	}

	return payload, nil
}

// ParseRequest is a convenience wrapper around [Parser.Parse] that takes
// the body, Content-Type, and context from r. When the Content-Length is
// known and already exceeds the request body budget, it fails before
// reading anything.
func (p *Parser) ParseRequest(r *http.Request) (Payload, error) {
	if max := p.cfg.limits.MaxRequestBody; max > 0 && r.ContentLength > max {
		return nil, &ParseError{
			Kind:   KindRequestBodyTooLarge,
			Reason: "Content-Length exceeds the request body budget",
		}
	}

	return p.Parse(r.Context(), r.Body, r.Header.Get("Content-Type"))
}

// parseRun is the mutable state of one Parse call. It is owned by a
// single goroutine for its whole lifetime.
type parseRun struct {
	parser    *Parser
	ctx       context.Context
	counters  *limitCounters
	tempFiles []string // every temp file created, for abort cleanup
	scope     []string // enclosing container names during recursion
}

func (run *parseRun) scopeCopy() []string {
	return slices.Clone(run.scope)
}

// cleanup removes every temp file created so far. Called on all abort
// paths before the error surfaces.
func (run *parseRun) cleanup() {
	for _, path := range run.tempFiles {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			run.parser.cfg.logger.Warn("formdata temp file cleanup failed",
				zap.String("path", path), zap.Error(err))
		}
	}
	run.tempFiles = nil
}

// parseContainer reads one boundary-delimited stream to its terminating
// boundary. It is called once for the top-level body and recursively for
// each nested container. rules is the rule scope for this container;
// depth is 0 at top level.
func (run *parseRun) parseContainer(r io.Reader, mediaType, boundary string, rules *ruleSet, depth int) (Payload, error) {
	guard := &headerGuard{r: r, counters: run.counters, run: run}
	mr := multipart.NewReader(guard, boundary)

	var form *Form
	var mixed *Mixed
	if mediaType == ContentTypeFormData {
		form = newForm()
	} else {
		mixed = &Mixed{}
	}

	seen := make(map[string]int)
	for {
		if err := run.ctx.Err(); err != nil {
			return nil, &ParseError{Kind: KindCancelled, Scope: run.scopeCopy(), Err: err}
		}

		run.counters.beginPart()
		guard.arm()
		pt, err := mr.NextPart()
		guard.disarm()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if perr := asParseError(err); perr != nil {
				return nil, perr
			}
			return nil, &ParseError{
				Kind:   KindMissingBoundary,
				Scope:  run.scopeCopy(),
				Reason: "malformed multipart framing",
				Err:    err,
			}
		}

		if !run.counters.tryConsume(limitPartCount, 1) {
			return nil, &ParseError{
				Kind:   KindTooManyParts,
				Scope:  run.scopeCopy(),
				Reason: "part count exceeds the configured budget",
			}
		}

		part, err := run.readPart(pt, rules, seen, depth)
		if err != nil {
			return nil, err
		}

		switch {
		case mixed != nil:
			mixed.add(part)
		case part.Nested != nil:
			form.addFile(part)
		case part.inMemory && part.FileName == "":
			form.addField(part)
		default:
			form.addFile(part)
		}
	}

	if missing := rules.missingRequired(seen); len(missing) > 0 {
		return nil, &ParseError{
			Kind:   KindMissingRequiredPart,
			Part:   missing[0],
			Scope:  run.scopeCopy(),
			Reason: "required part not present in its scope",
		}
	}

	if form != nil {
		return form, nil
	}
	return mixed, nil
}

// readPart validates one part's headers against its scope's rules, then
// decodes and materializes (or recurses into) its body.
func (run *parseRun) readPart(pt *multipart.Part, rules *ruleSet, seen map[string]int, depth int) (*Part, error) {
	name, fileName, err := run.partDisposition(pt)
	if err != nil {
		return nil, err
	}

	mediaType, ctParams, err := run.partContentType(pt, name)
	if err != nil {
		return nil, err
	}

	rule, known := rules.lookup(name)
	if !known && run.parser.cfg.rejectUnknown {
		return nil, &ParseError{
			Kind:   KindUnknownPartRejected,
			Part:   name,
			Scope:  run.scopeCopy(),
			Reason: "no rule for part name in this scope",
		}
	}

	key := strings.ToLower(name)
	if known && rule.Single && seen[key] > 0 {
		return nil, &ParseError{
			Kind:   KindDuplicatePart,
			Part:   name,
			Scope:  run.scopeCopy(),
			Reason: "part name occurs more than once",
		}
	}
	seen[key]++

	if known && !rule.allowsContentType(mediaType) {
		return nil, &ParseError{
			Kind:   KindUnsupportedContentType,
			Part:   name,
			Scope:  run.scopeCopy(),
			Reason: fmt.Sprintf("content type %q not accepted for this part", mediaType),
		}
	}

	declaredEnc := pt.Header.Get("Content-Encoding")
	if allowed := run.parser.cfg.allowedEnc; allowed != nil {
		if _, ok := allowed[normalizeEncoding(declaredEnc)]; !ok {
			return nil, &ParseError{
				Kind:   KindUnsupportedEncoding,
				Part:   name,
				Scope:  run.scopeCopy(),
				Reason: fmt.Sprintf("content encoding %q not accepted", normalizeEncoding(declaredEnc)),
			}
		}
	}

	part := &Part{
		Name:        name,
		ContentType: mediaType,
		FileName:    fileName,
	}

	body, normEnc, err := run.parser.decodePart(pt, declaredEnc, name, run.scopeCopy())
	if err != nil {
		return nil, err
	}
	part.ContentEncoding = normEnc

	if strings.HasPrefix(mediaType, "multipart/") {
		if err := run.recurse(part, body, mediaType, ctParams, rule, known, depth); err != nil {
			return nil, err
		}
		return part, nil
	}

	toDisk := known && rule.StoreToDisk
	reader := run.budgetedBody(body, part, toDisk, fileName != "")
	if err := run.store(part, reader, toDisk); err != nil {
		return nil, err
	}

	run.parser.cfg.logger.Debug("formdata part parsed",
		zap.String("name", name),
		zap.Strings("scope", run.scope),
		zap.Int64("size", part.Size),
		zap.Bool("disk", toDisk),
	)
	return part, nil
}

// recurse parses a nested multipart container into part.Nested, one
// scope level down.
func (run *parseRun) recurse(part *Part, body io.Reader, mediaType string, ctParams map[string]string, rule *compiledRule, known bool, depth int) error {
	if max := run.parser.cfg.limits.MaxNestingDepth; max > 0 && depth+1 > max {
		return &ParseError{
			Kind:   KindNestingTooDeep,
			Part:   part.Name,
			Scope:  run.scopeCopy(),
			Reason: "nested container exceeds the configured depth",
		}
	}

	nestedBoundary := ctParams["boundary"]
	if nestedBoundary == "" {
		return &ParseError{
			Kind:   KindMissingBoundary,
			Part:   part.Name,
			Scope:  run.scopeCopy(),
			Reason: "no boundary parameter on nested container",
		}
	}

	var nestedRules *ruleSet
	if known {
		nestedRules = rule.nested
	}

	run.scope = append(run.scope, part.Name)
	nested, err := run.parseContainer(body, mediaType, nestedBoundary, nestedRules, depth+1)
	run.scope = run.scope[:len(run.scope)-1]
	if err != nil {
		return err
	}

	part.Nested = nested
	return nil
}

// budgetedBody wraps a decoded part body in the per-part budget readers:
// always the part body budget, plus the field value budget for in-memory
// fields.
func (run *parseRun) budgetedBody(body io.Reader, part *Part, toDisk, isFile bool) io.Reader {
	r := &budgetReader{
		r:        body,
		counters: run.counters,
		kind:     limitPartBody,
		part:     part.Name,
		run:      run,
	}
	if toDisk || isFile {
		return r
	}
	return &budgetReader{
		r:        r,
		counters: run.counters,
		kind:     limitFieldValue,
		part:     part.Name,
		run:      run,
	}
}

// partDisposition extracts and validates the part's name and filename.
func (run *parseRun) partDisposition(pt *multipart.Part) (name, fileName string, err error) {
	cd := pt.Header.Get("Content-Disposition")
	if cd == "" {
		return "", "", &ParseError{
			Kind:   KindMissingContentDisposition,
			Scope:  run.scopeCopy(),
			Reason: "part has no Content-Disposition header",
		}
	}
	_, params, perr := mime.ParseMediaType(cd)
	if perr != nil || params["name"] == "" {
		return "", "", &ParseError{
			Kind:   KindMissingContentDisposition,
			Scope:  run.scopeCopy(),
			Reason: "Content-Disposition does not name the part",
			Err:    perr,
		}
	}
	return params["name"], sanitizeFileName(params["filename"]), nil
}

// partContentType parses the part's declared media type, defaulting to
// application/octet-stream when absent.
func (run *parseRun) partContentType(pt *multipart.Part, name string) (string, map[string]string, error) {
	ct := pt.Header.Get("Content-Type")
	if ct == "" {
		return "application/octet-stream", nil, nil
	}
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", nil, &ParseError{
			Kind:   KindUnsupportedContentType,
			Part:   name,
			Scope:  run.scopeCopy(),
			Reason: "malformed part Content-Type",
			Err:    err,
		}
	}
	return strings.ToLower(mediaType), params, nil
}

// asParseError unwraps a *ParseError from err, or returns nil.
func asParseError(err error) *ParseError {
	var perr *ParseError
	if errors.As(err, &perr) {
		return perr
	}
	return nil
}

// requestReader meters raw source consumption against the request body
// budget and observes cancellation on every read. Once it fails it stays
// failed: no further bytes are read from the source.
type requestReader struct {
	ctx      context.Context
	r        io.Reader
	counters *limitCounters
	failed   error
}

func (r *requestReader) Read(p []byte) (int, error) {
	if r.failed != nil {
		return 0, r.failed
	}
	if err := r.ctx.Err(); err != nil {
		r.failed = &ParseError{Kind: KindCancelled, Err: err}
		return 0, r.failed
	}

	n, err := r.r.Read(p)
	if n > 0 && !r.counters.tryConsume(limitRequestBody, int64(n)) {
		r.failed = &ParseError{
			Kind:   KindRequestBodyTooLarge,
			Reason: "cumulative request body exceeds the configured budget",
		}
		return n, r.failed
	}
	return n, err
}

// headerGuard meters bytes consumed while the multipart reader scans a
// boundary delimiter and part header block. It is armed only around
// NextPart, so part body reads pass through uncounted. The charge may
// include up to one internal buffer of body read-ahead.
type headerGuard struct {
	r        io.Reader
	counters *limitCounters
	run      *parseRun
	armed    bool
	failed   error
}

func (g *headerGuard) arm()    { g.armed = true }
func (g *headerGuard) disarm() { g.armed = false }

func (g *headerGuard) Read(p []byte) (int, error) {
	if g.failed != nil {
		return 0, g.failed
	}
	n, err := g.r.Read(p)
	if n > 0 && g.armed && !g.counters.tryConsume(limitHeaderBytes, int64(n)) {
		g.failed = &ParseError{
			Kind:   KindHeaderTooLarge,
			Scope:  g.run.scopeCopy(),
			Reason: "part header block exceeds the configured budget",
		}
		return n, g.failed
	}
	return n, err
}

// budgetReader charges decoded part body bytes against a per-part
// budget.
type budgetReader struct {
	r        io.Reader
	counters *limitCounters
	kind     limitKind
	part     string
	run      *parseRun
	failed   error
}

func (b *budgetReader) Read(p []byte) (int, error) {
	if b.failed != nil {
		return 0, b.failed
	}
	n, err := b.r.Read(p)
	if n > 0 && !b.counters.tryConsume(b.kind, int64(n)) {
		b.failed = &ParseError{
			Kind:   b.kind.errorKind(),
			Part:   b.part,
			Scope:  b.run.scopeCopy(),
			Reason: "part body exceeds the configured budget",
		}
		return n, b.failed
	}
	return n, err
}
