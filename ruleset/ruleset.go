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

// Package ruleset loads formdata parser configuration from YAML or TOML
// files, so routes can keep their upload policies declarative.
//
// Example:
//
//	opts, err := ruleset.LoadFile("uploads.yaml")
//	if err != nil {
//	    return err
//	}
//	parser, err := formdata.New(opts...)
package ruleset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"rivaas.dev/formdata"
)

// ErrUnknownFormat is returned by [LoadFile] for unrecognized file
// extensions.
var ErrUnknownFormat = errors.New("ruleset: unrecognized file extension")

// File is the on-disk schema. Omitted limit fields keep the parser
// defaults; zero values mean unbounded, as in [formdata.Limits].
type File struct {
	ContentTypes  []string       `yaml:"content_types" toml:"content_types"`
	UploadDir     string         `yaml:"upload_dir"    toml:"upload_dir"`
	SHA256        bool           `yaml:"sha256"        toml:"sha256"`
	RejectUnknown bool           `yaml:"reject_unknown" toml:"reject_unknown"`
	Decompression *Decompression `yaml:"decompression" toml:"decompression"`
	Limits        *LimitsSpec    `yaml:"limits"        toml:"limits"`
	Rules         []RuleSpec     `yaml:"rules"         toml:"rules"`
}

// Decompression configures part body decoding.
type Decompression struct {
	Enabled   bool     `yaml:"enabled"   toml:"enabled"`
	Encodings []string `yaml:"encodings" toml:"encodings"`
	MaxBytes  *int64   `yaml:"max_bytes" toml:"max_bytes"`
}

// LimitsSpec mirrors [formdata.Limits] with optional fields.
type LimitsSpec struct {
	MaxRequestBody  *int64 `yaml:"max_request_body"  toml:"max_request_body"`
	MaxPartBody     *int64 `yaml:"max_part_body"     toml:"max_part_body"`
	MaxParts        *int   `yaml:"max_parts"         toml:"max_parts"`
	MaxHeaderBytes  *int64 `yaml:"max_header_bytes"  toml:"max_header_bytes"`
	MaxFieldValue   *int64 `yaml:"max_field_value"   toml:"max_field_value"`
	MaxNestingDepth *int   `yaml:"max_nesting_depth" toml:"max_nesting_depth"`
}

// RuleSpec mirrors [formdata.Rule].
type RuleSpec struct {
	Name         string     `yaml:"name"          toml:"name"`
	Required     bool       `yaml:"required"      toml:"required"`
	Single       bool       `yaml:"single"        toml:"single"`
	ContentTypes []string   `yaml:"content_types" toml:"content_types"`
	Disk         bool       `yaml:"disk"          toml:"disk"`
	Nested       []RuleSpec `yaml:"nested"        toml:"nested"`
}

// YAML parses a YAML rule-set document into parser options.
func YAML(data []byte) ([]formdata.Option, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ruleset: parsing yaml: %w", err)
	}
	return f.Options(), nil
}

// TOML parses a TOML rule-set document into parser options.
func TOML(data []byte) ([]formdata.Option, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ruleset: parsing toml: %w", err)
	}
	return f.Options(), nil
}

// LoadFile reads path and parses it by extension (.yaml, .yml, .toml).
func LoadFile(path string) ([]formdata.Option, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ruleset: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML(data)
	case ".toml":
		return TOML(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Options converts the decoded file into formdata options. The result
// feeds straight into [formdata.New], which performs all validation.
func (f *File) Options() []formdata.Option {
	var opts []formdata.Option

	if len(f.ContentTypes) > 0 {
		opts = append(opts, formdata.WithAllowedContentTypes(f.ContentTypes...))
	}
	if f.UploadDir != "" {
		opts = append(opts, formdata.WithUploadDir(f.UploadDir))
	}
	if f.SHA256 {
		opts = append(opts, formdata.WithSHA256(true))
	}
	if f.RejectUnknown {
		opts = append(opts, formdata.WithRejectUnknownParts(true))
	}

	if d := f.Decompression; d != nil {
		opts = append(opts, formdata.WithDecompression(d.Enabled))
		if len(d.Encodings) > 0 {
			opts = append(opts, formdata.WithAllowedEncodings(d.Encodings...))
		}
		if d.MaxBytes != nil {
			opts = append(opts, formdata.WithMaxDecompressedBytes(*d.MaxBytes))
		}
	}

	if f.Limits != nil {
		opts = append(opts, formdata.WithLimits(f.Limits.merge(formdata.DefaultLimits())))
	}

	if len(f.Rules) > 0 {
		opts = append(opts, formdata.WithRules(convertRules(f.Rules)...))
	}

	return opts
}

// merge overlays the file's set fields onto base.
func (s *LimitsSpec) merge(base formdata.Limits) formdata.Limits {
	if s.MaxRequestBody != nil {
		base.MaxRequestBody = *s.MaxRequestBody
	}
	if s.MaxPartBody != nil {
		base.MaxPartBody = *s.MaxPartBody
	}
	if s.MaxParts != nil {
		base.MaxParts = *s.MaxParts
	}
	if s.MaxHeaderBytes != nil {
		base.MaxHeaderBytes = *s.MaxHeaderBytes
	}
	if s.MaxFieldValue != nil {
		base.MaxFieldValue = *s.MaxFieldValue
	}
	if s.MaxNestingDepth != nil {
		base.MaxNestingDepth = *s.MaxNestingDepth
	}
	return base
}

func convertRules(specs []RuleSpec) []formdata.Rule {
	rules := make([]formdata.Rule, 0, len(specs))
	for _, s := range specs {
		rules = append(rules, formdata.Rule{
			Name:         s.Name,
			Required:     s.Required,
			Single:       s.Single,
			ContentTypes: s.ContentTypes,
			StoreToDisk:  s.Disk,
			Nested:       convertRules(s.Nested),
		})
	}
	return rules
}
