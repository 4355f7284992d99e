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

package formdata_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"rivaas.dev/formdata"
)

// ExampleParser_Parse demonstrates parsing a simple form with rules.
func ExampleParser_Parse() {
	parser := formdata.MustNew(
		formdata.WithRules(
			formdata.Rule{Name: "title", Required: true, Single: true},
			formdata.Rule{Name: "tags"},
		),
	)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("title", "quarterly report")
	w.WriteField("tags", "finance")
	w.WriteField("tags", "q3")
	w.Close()

	payload, err := parser.Parse(context.Background(), &buf, w.FormDataContentType())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer payload.Cleanup()

	form := payload.(*formdata.Form)
	fmt.Printf("Title: %s\n", form.Get("title"))
	fmt.Printf("Tags: %v\n", form.GetAll("tags"))
	// Output:
	// Title: quarterly report
	// Tags: [finance q3]
}

// ExampleParseError demonstrates mapping a parse failure to an HTTP
// response.
func ExampleParseError() {
	parser := formdata.MustNew(
		formdata.WithRules(formdata.Rule{Name: "meta", Required: true}),
	)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("something-else", "value")
	w.Close()

	_, err := parser.Parse(context.Background(), &buf, w.FormDataContentType())

	var perr *formdata.ParseError
	if errors.As(err, &perr) {
		fmt.Printf("Status: %d\n", perr.HTTPStatus())
		fmt.Printf("Code: %s\n", perr.Code())
		fmt.Printf("Part: %s\n", perr.Part)
	}
	// Output:
	// Status: 400
	// Code: missing_required_part
	// Part: meta
}

// ExampleWithLimits demonstrates tightening the resource budgets.
func ExampleWithLimits() {
	parser := formdata.MustNew(
		formdata.WithLimits(formdata.Limits{
			MaxRequestBody: 1 << 20,
			MaxParts:       2,
		}),
	)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("a", "1")
	w.WriteField("b", "2")
	w.WriteField("c", "3")
	w.Close()

	_, err := parser.Parse(context.Background(), &buf, w.FormDataContentType())

	var perr *formdata.ParseError
	if errors.As(err, &perr) {
		fmt.Printf("Code: %s\n", perr.Code())
	}
	// Output: Code: too_many_parts
}
