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
	"strings"
)

// Rule describes one expected part within its scope.
//
// Scoping is structural: a rule applies at the nesting level where it is
// declared. Top-level rules are passed to [WithRules]; rules inside a
// Nested slice apply only within the container part whose name matches
// the enclosing rule. Two rules may therefore share a name as long as
// they live in different scopes, and each is honored independently:
//
//	formdata.WithRules(
//	    formdata.Rule{Name: "text"},                       // top-level "text"
//	    formdata.Rule{Name: "group", Nested: []formdata.Rule{
//	        formdata.Rule{Name: "text", StoreToDisk: true}, // "text" inside "group"
//	    }},
//	)
//
// Because the tree is built by value, scopes cannot form cycles; the
// shape of the configuration mirrors the physical nesting of the body.
type Rule struct {
	// Name is matched case-insensitively against the part's
	// Content-Disposition name.
	Name string `validate:"required"`

	// Required fails the request with missing_required_part when no part
	// in this rule's scope matches Name.
	Required bool

	// Single fails the request with duplicate_part when a second part in
	// this scope matches Name.
	Single bool

	// ContentTypes restricts the part's declared media type. Empty allows
	// any. Matching ignores parameters ("text/plain; charset=utf-8"
	// matches "text/plain").
	ContentTypes []string

	// StoreToDisk streams the part's decoded body to a temp file under
	// the configured upload directory instead of buffering it in memory.
	StoreToDisk bool

	// Nested declares the rules valid inside this part when it is itself
	// a multipart container. A non-empty Nested marks the rule as a
	// container rule.
	Nested []Rule
}

// compiledRule is a Rule with lookup structures precomputed at New.
type compiledRule struct {
	Rule
	contentTypes map[string]struct{} // lowercase media types, nil = any
	nested       *ruleSet            // nil for leaf rules
}

// allowsContentType reports whether the rule accepts the media type.
func (r *compiledRule) allowsContentType(mediaType string) bool {
	if r.contentTypes == nil {
		return true
	}
	_, ok := r.contentTypes[strings.ToLower(mediaType)]
	return ok
}

// ruleSet is the compiled rule collection for one scope. The same part
// name resolves independently per scope; a ruleSet never consults its
// parent or children during lookup.
type ruleSet struct {
	byName map[string]*compiledRule
	rules  []*compiledRule // declaration order, for required checks
}

// lookup resolves a part name within this scope. The second return is
// false for unknown names.
func (s *ruleSet) lookup(name string) (*compiledRule, bool) {
	if s == nil {
		return nil, false
	}
	r, ok := s.byName[strings.ToLower(name)]
	return r, ok
}

// empty reports whether the scope declares no rules at all.
func (s *ruleSet) empty() bool {
	return s == nil || len(s.rules) == 0
}

// compileRules validates and indexes a rule slice for one scope,
// recursing into nested scopes. scope carries the container names for
// error messages only.
func compileRules(rules []Rule, scope []string) (*ruleSet, error) {
	if len(rules) == 0 {
		return nil, nil
	}

	set := &ruleSet{byName: make(map[string]*compiledRule, len(rules))}
	for i := range rules {
		rule := rules[i]
		if strings.TrimSpace(rule.Name) == "" {
			return nil, fmt.Errorf("%w (scope %q)", ErrEmptyRuleName, scopePath(scope))
		}

		key := strings.ToLower(rule.Name)
		if _, exists := set.byName[key]; exists {
			return nil, fmt.Errorf("%w: %q (scope %q)", ErrDuplicateRule, rule.Name, scopePath(scope))
		}

		cr := &compiledRule{Rule: rule}
		if len(rule.ContentTypes) > 0 {
			cr.contentTypes = make(map[string]struct{}, len(rule.ContentTypes))
			for _, ct := range rule.ContentTypes {
				cr.contentTypes[strings.ToLower(strings.TrimSpace(ct))] = struct{}{}
			}
		}

		if len(rule.Nested) > 0 {
			nested, err := compileRules(rule.Nested, append(scope, rule.Name))
			if err != nil {
				return nil, err
			}
			cr.nested = nested
		}

		set.byName[key] = cr
		set.rules = append(set.rules, cr)
	}

	return set, nil
}

// missingRequired returns the names of required rules in this scope with
// no matching part, given per-name occurrence counts.
func (s *ruleSet) missingRequired(seen map[string]int) []string {
	if s == nil {
		return nil
	}
	var missing []string
	for _, r := range s.rules {
		if r.Required && seen[strings.ToLower(r.Name)] == 0 {
			missing = append(missing, r.Name)
		}
	}
	return missing
}

func scopePath(scope []string) string {
	if len(scope) == 0 {
		return "top-level"
	}
	return strings.Join(scope, "/")
}
