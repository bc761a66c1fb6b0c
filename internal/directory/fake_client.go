/* SPDX-License-Identifier: Apache-2.0
 *
 * Copyright 2023 Damian Peckett <damian@pecke.tt>.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
	"github.com/gpu-ninja/lumext/internal/util"
	"go.uber.org/zap"
)

// Call is a directory request recorded by the fake client.
type Call struct {
	Op            string
	DN            string
	Attributes    Attributes
	Modifications []Modification
	Search        *SearchRequest
}

type fakeEntry struct {
	dn    string
	attrs Attributes
}

// FakeClient is an in-memory directory used by tests.
type FakeClient struct {
	mu      sync.Mutex
	baseDN  string
	entries map[string]*fakeEntry
	calls   []Call
	errs    map[string]error
}

var _ Client = (*FakeClient)(nil)

// NewFakeClient returns an empty directory containing only the base entry.
func NewFakeClient(baseDN string) *FakeClient {
	c := &FakeClient{
		baseDN:  baseDN,
		entries: make(map[string]*fakeEntry),
		errs:    make(map[string]error),
	}

	c.entries[NormalizeDN(baseDN)] = &fakeEntry{dn: baseDN}

	return c
}

// SetError makes every subsequent call of op ("search", "add", "modify",
// "delete" or "ping") fail with err. A nil err clears it.
func (c *FakeClient) SetError(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		delete(c.errs, op)
		return
	}

	c.errs[op] = err
}

// Calls returns the requests made so far.
func (c *FakeClient) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Call(nil), c.calls...)
}

// CallsOf returns the requests of a single kind made so far.
func (c *FakeClient) CallsOf(op string) []Call {
	var calls []Call
	for _, call := range c.Calls() {
		if call.Op == op {
			calls = append(calls, call)
		}
	}

	return calls
}

// ResetCalls forgets the recorded requests.
func (c *FakeClient) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = nil
}

// Entries returns a snapshot of the directory, ordered by DN.
func (c *FakeClient) Entries() []SearchEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]SearchEntry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, SearchEntry{DN: e.dn, Attributes: cloneAttributes(e.attrs)})
	}

	sort.Slice(entries, func(i, j int) bool {
		return NormalizeDN(entries[i].DN) < NormalizeDN(entries[j].DN)
	})

	return entries
}

func (c *FakeClient) Ping(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.errs["ping"]
}

func (c *FakeClient) Search(ctx context.Context, req SearchRequest) []SearchEntry {
	logger := util.LoggerFromContext(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, Call{Op: "search", DN: req.BaseDN, Search: &req})

	if err := c.errs["search"]; err != nil {
		logger.Warn("Search failed", zap.Error(err))
		return nil
	}

	base := NormalizeDN(req.BaseDN)
	if _, ok := c.entries[base]; !ok {
		logger.Debug("Search base does not exist", zap.String("base", req.BaseDN))
		return nil
	}

	filter, err := ldap.CompileFilter(req.Filter)
	if err != nil {
		logger.Warn("Search failed", zap.Error(err))
		return nil
	}

	var results []SearchEntry
	for key, e := range c.entries {
		if !inScope(key, base, req.Scope) {
			continue
		}

		ok, err := matches(filter, e.attrs)
		if err != nil {
			logger.Warn("Search failed", zap.Error(err))
			return nil
		}

		if ok {
			results = append(results, SearchEntry{DN: e.dn, Attributes: selectAttributes(e.attrs, req.Attributes)})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return NormalizeDN(results[i].DN) < NormalizeDN(results[j].DN)
	})

	return results
}

func (c *FakeClient) Add(_ context.Context, dn string, attrs Attributes) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, Call{Op: "add", DN: dn, Attributes: cloneAttributes(attrs)})

	if err := c.errs["add"]; err != nil {
		return newError("add", dn, err)
	}

	key := NormalizeDN(dn)
	if _, ok := c.entries[key]; ok {
		return NewErrorWithCode("add", dn, ldap.LDAPResultEntryAlreadyExists)
	}

	if _, ok := c.entries[ParentDN(key)]; !ok {
		return NewErrorWithCode("add", dn, ldap.LDAPResultNoSuchObject)
	}

	stored := cloneAttributes(attrs)
	// Active Directory maintains the name attribute from the RDN.
	if len(stored.Get("name")) == 0 {
		parsed, err := ldap.ParseDN(dn)
		if err == nil && len(parsed.RDNs) > 0 && len(parsed.RDNs[0].Attributes) > 0 {
			stored.Set("name", []byte(parsed.RDNs[0].Attributes[0].Value))
		}
	}

	c.entries[key] = &fakeEntry{dn: dn, attrs: stored}

	return nil
}

func (c *FakeClient) Modify(_ context.Context, dn string, mods []Modification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, Call{Op: "modify", DN: dn, Modifications: append([]Modification(nil), mods...)})

	if len(mods) == 0 {
		return newError("modify", dn, errors.New("no modifications"))
	}

	if err := c.errs["modify"]; err != nil {
		return newError("modify", dn, err)
	}

	e, ok := c.entries[NormalizeDN(dn)]
	if !ok {
		return NewErrorWithCode("modify", dn, ldap.LDAPResultNoSuchObject)
	}

	attrs := cloneAttributes(e.attrs)
	for _, mod := range mods {
		switch mod.Operation {
		case ModifyDelete:
			if len(attrs.Get(mod.Name)) == 0 {
				return NewErrorWithCode("modify", dn, ldap.LDAPResultNoSuchAttribute)
			}
			attrs.Remove(mod.Name)
		default:
			attrs.Set(mod.Name, mod.Values...)
		}
	}

	e.attrs = attrs

	return nil
}

func (c *FakeClient) Delete(_ context.Context, dn string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, Call{Op: "delete", DN: dn})

	if err := c.errs["delete"]; err != nil {
		return newError("delete", dn, err)
	}

	key := NormalizeDN(dn)
	if _, ok := c.entries[key]; !ok {
		return NewErrorWithCode("delete", dn, ldap.LDAPResultNoSuchObject)
	}

	for other := range c.entries {
		if ParentDN(other) == key {
			return NewErrorWithCode("delete", dn, ldap.LDAPResultNotAllowedOnNonLeaf)
		}
	}

	delete(c.entries, key)

	return nil
}

func inScope(key, base string, scope Scope) bool {
	switch scope {
	case ScopeBaseObject:
		return key == base
	case ScopeSingleLevel:
		return ParentDN(key) == base
	default:
		return key == base || strings.HasSuffix(key, ","+base)
	}
}

// matches evaluates a compiled filter. Only the filter kinds this service
// issues are supported.
func matches(filter *ber.Packet, attrs Attributes) (bool, error) {
	switch filter.Tag {
	case ldap.FilterAnd:
		for _, child := range filter.Children {
			ok, err := matches(child, attrs)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case ldap.FilterOr:
		for _, child := range filter.Children {
			ok, err := matches(child, attrs)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case ldap.FilterNot:
		if len(filter.Children) != 1 {
			return false, fmt.Errorf("malformed not filter")
		}
		ok, err := matches(filter.Children[0], attrs)
		return !ok, err
	case ldap.FilterEqualityMatch:
		if len(filter.Children) != 2 {
			return false, fmt.Errorf("malformed equality filter")
		}
		name, _ := filter.Children[0].Value.(string)
		value, _ := filter.Children[1].Value.(string)
		for _, v := range attrs.Get(name) {
			if strings.EqualFold(string(v), value) {
				return true, nil
			}
		}
		return false, nil
	case ldap.FilterPresent:
		name, _ := filter.Value.(string)
		if strings.EqualFold(name, "objectClass") {
			return true, nil
		}
		return len(attrs.Get(name)) > 0, nil
	default:
		return false, fmt.Errorf("unsupported filter: %s", ldap.FilterMap[uint64(filter.Tag)])
	}
}

func selectAttributes(attrs Attributes, names []string) Attributes {
	if len(names) == 0 || util.Contains(names, "*") {
		return cloneAttributes(attrs)
	}

	var selected Attributes
	for _, name := range names {
		if values := attrs.Get(name); len(values) > 0 {
			selected = append(selected, Attribute{Name: name, Values: cloneValues(values)})
		}
	}

	return selected
}

func cloneAttributes(attrs Attributes) Attributes {
	if attrs == nil {
		return nil
	}

	cloned := make(Attributes, 0, len(attrs))
	for _, attr := range attrs {
		cloned = append(cloned, Attribute{Name: attr.Name, Values: cloneValues(attr.Values)})
	}

	return cloned
}

func cloneValues(values [][]byte) [][]byte {
	cloned := make([][]byte, 0, len(values))
	for _, v := range values {
		cloned = append(cloned, append([]byte(nil), v...))
	}

	return cloned
}
