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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const copyBufSize = 32 << 10

// store materializes a part's decoded body either on disk or in memory,
// computing the content hash while streaming when enabled. body must
// already be wrapped in the applicable budget readers.
func (run *parseRun) store(part *Part, body io.Reader, toDisk bool) error {
	var h hash.Hash
	if run.parser.cfg.computeSHA256 {
		h = sha256.New()
	}

	if toDisk {
		if err := run.storeToDisk(part, body, h); err != nil {
			return err
		}
	} else {
		if err := run.storeInMemory(part, body, h); err != nil {
			return err
		}
	}

	if h != nil {
		part.SHA256 = hex.EncodeToString(h.Sum(nil))
	}
	return nil
}

// storeToDisk streams body to a uniquely named temp file under the
// upload directory. On any failure after the file is created, the
// partial file is removed before the error propagates.
func (run *parseRun) storeToDisk(part *Part, body io.Reader, h hash.Hash) error {
	dir := run.parser.cfg.uploadDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return run.storageFailure(part, "creating upload directory", err)
	}

	path := filepath.Join(dir, "formdata-"+uuid.NewString())
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return run.storageFailure(part, "creating temp file", err)
	}

	n, err := copyBody(f, body, h)
	if err != nil {
		f.Close()
		os.Remove(path)
		return run.classifyBodyErr(part, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return run.storageFailure(part, "closing temp file", err)
	}

	part.Size = n
	part.tempPath = path
	run.tempFiles = append(run.tempFiles, path)
	return nil
}

// storeInMemory buffers body in memory. Budget readers upstream bound
// the buffer's growth.
func (run *parseRun) storeInMemory(part *Part, body io.Reader, h hash.Hash) error {
	var buf bytes.Buffer
	n, err := copyBody(&buf, body, h)
	if err != nil {
		return run.classifyBodyErr(part, err)
	}
	part.Size = n
	part.value = buf.Bytes()
	part.inMemory = true
	return nil
}

// copyBody copies body into w, feeding h alongside when non-nil. Write
// errors are wrapped in writeError so callers can tell the two sides
// apart.
func copyBody(w io.Writer, body io.Reader, h hash.Hash) (int64, error) {
	buf := make([]byte, copyBufSize)
	var written int64
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return written, &writeError{err: werr}
			}
			if h != nil {
				h.Write(buf[:n])
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// writeError marks an error as originating on the storage side of a
// body copy.
type writeError struct{ err error }

func (e *writeError) Error() string { return e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

// classifyBodyErr sorts a copy failure into the error taxonomy:
// parser-raised errors pass through, cancellation becomes cancelled,
// sink errors become storage_failure, and transport errors from the
// caller's reader propagate untouched.
func (run *parseRun) classifyBodyErr(part *Part, err error) error {
	if errKind(err) != KindUnknown {
		return err
	}
	var werr *writeError
	if errors.As(err, &werr) {
		return run.storageFailure(part, "writing part body", werr.err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ParseError{Kind: KindCancelled, Part: part.Name, Scope: run.scopeCopy(), Err: err}
	}
	return err
}

// storageFailure wraps a filesystem error, logging it as an operational
// issue rather than a client error.
func (run *parseRun) storageFailure(part *Part, action string, err error) error {
	run.parser.cfg.logger.Warn("formdata storage failure",
		zap.String("part", part.Name),
		zap.String("action", action),
		zap.Error(err),
	)
	return &ParseError{
		Kind:   KindStorageFailure,
		Part:   part.Name,
		Scope:  run.scopeCopy(),
		Reason: action,
		Err:    err,
	}
}
