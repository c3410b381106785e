package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownIdentifier is returned when no identifier variant parses.
var ErrUnknownIdentifier = errors.New("no identifier variant matched")

// MarshalJSON encodes the identifier as a single-field object tagged by its
// variant, e.g. {"bundle":"com.apple.Safari"}.
func (id AppIdentifier) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("marshal identifier: %w", ErrUnknownIdentifier)
	}
	return json.Marshal(map[string]string{id.kind.field(): id.value})
}

// UnmarshalJSON decodes a tagged identifier by trial, in fixed order:
// bundle first, then executable_path. The first variant whose field is
// present and holds a string is accepted.
func (id *AppIdentifier) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("unmarshal identifier: %w", err)
	}

	for _, kind := range identifierDecodeOrder {
		raw, ok := fields[kind.field()]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil || value == "" {
			continue
		}
		switch kind {
		case KindBundle:
			*id = Bundle(value)
		case KindExecutablePath:
			*id = ExecutablePath(value)
		}
		return nil
	}

	return fmt.Errorf("unmarshal identifier %s: %w", data, ErrUnknownIdentifier)
}

func (id AppIdentifier) canonical() map[string]any {
	return map[string]any{id.kind.field(): id.value}
}

func (r AppRule) canonical() map[string]any {
	return map[string]any{
		"identifier":       r.Identifier.canonical(),
		"full_screen_only": r.FullScreenOnly,
	}
}

func (r BrowserRule) canonical() map[string]any {
	return map[string]any{
		"type": string(r.Type),
		"host": r.Host,
	}
}

// EncodeAppRules serializes the set as a canonical JSON array in
// deterministic order.
func EncodeAppRules(s AppRuleSet) ([]byte, error) {
	rules := s.Sorted()
	arr := make([]any, len(rules))
	for i, r := range rules {
		if r.Identifier.IsZero() {
			return nil, fmt.Errorf("encode app rule %d: %w", i, ErrUnknownIdentifier)
		}
		arr[i] = r.canonical()
	}
	data, err := MarshalCanonical(arr)
	if err != nil {
		return nil, fmt.Errorf("encode app rules: %w", err)
	}
	return data, nil
}

// DecodeAppRules parses a blob written by EncodeAppRules.
// An empty blob decodes to an empty set.
func DecodeAppRules(data []byte) (AppRuleSet, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return AppRuleSet{}, nil
	}

	var rules []AppRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("decode app rules: %w", err)
	}

	s := make(AppRuleSet, len(rules))
	for i, r := range rules {
		if r.Identifier.IsZero() {
			return nil, fmt.Errorf("decode app rule %d: %w", i, ErrUnknownIdentifier)
		}
		s.Insert(r)
	}
	return s, nil
}

// EncodeBrowserRules serializes the set as a canonical JSON array in
// deterministic order.
func EncodeBrowserRules(s BrowserRuleSet) ([]byte, error) {
	rules := s.Sorted()
	arr := make([]any, len(rules))
	for i, r := range rules {
		arr[i] = r.canonical()
	}
	data, err := MarshalCanonical(arr)
	if err != nil {
		return nil, fmt.Errorf("encode browser rules: %w", err)
	}
	return data, nil
}

// DecodeBrowserRules parses a blob written by EncodeBrowserRules.
// Unknown rule types and empty hosts are rejected.
func DecodeBrowserRules(data []byte) (BrowserRuleSet, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return BrowserRuleSet{}, nil
	}

	var rules []BrowserRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("decode browser rules: %w", err)
	}

	s := make(BrowserRuleSet, len(rules))
	for i, r := range rules {
		if !r.Type.Valid() {
			return nil, fmt.Errorf("decode browser rule %d: unknown type %q", i, r.Type)
		}
		if r.Host == "" {
			return nil, fmt.Errorf("decode browser rule %d: empty host", i)
		}
		s.Insert(NewBrowserRule(r.Type, r.Host))
	}
	return s, nil
}
