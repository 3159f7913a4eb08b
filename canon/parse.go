package canon

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/teranos/invar/errors"
)

// setKey is the single-key object form marking an unordered collection.
const setKey = "$set"

// Parse maps a raw scenario document to a typed tree, or a parse veto.
//
// The grammar is restricted JSON: the top level must be a record (object),
// strings beginning with "@" are entity references, and an object holding
// exactly the key "$set" with an array value is an unordered collection.
// Duplicate keys, trailing data, and malformed syntax are all vetoes —
// no silent recovery.
func Parse(raw []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	node, err := parseValue(dec)
	if err != nil {
		return nil, err
	}
	if node.Kind != KindRecord {
		return nil, errors.Wrapf(errors.ErrParseFailure, "top-level value must be a record, got %s", node.Kind)
	}

	// Reject trailing content after the document
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.Wrap(errors.ErrParseFailure, "trailing data after document")
	}

	return node, nil
}

func parseValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(errors.ErrParseFailure, err.Error())
	}
	return parseToken(dec, tok)
}

func parseToken(dec *json.Decoder, tok json.Token) (*Node, error) {
	switch t := tok.(type) {
	case nil:
		return &Node{Kind: KindNull}, nil
	case bool:
		return &Node{Kind: KindBool, Bool: t}, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, errors.Wrapf(errors.ErrParseFailure, "unrepresentable number %q", t.String())
		}
		return &Node{Kind: KindNumber, Num: f}, nil
	case string:
		if strings.HasPrefix(t, "@") {
			name := strings.TrimPrefix(t, "@")
			if name == "" {
				return nil, errors.Wrap(errors.ErrParseFailure, "empty entity reference")
			}
			return &Node{Kind: KindEntity, Str: name}, nil
		}
		return &Node{Kind: KindString, Str: t}, nil
	case json.Delim:
		switch t {
		case '[':
			return parseList(dec)
		case '{':
			return parseObject(dec)
		}
	}
	return nil, errors.Wrapf(errors.ErrParseFailure, "unexpected token %v", tok)
}

func parseList(dec *json.Decoder) (*Node, error) {
	node := &Node{Kind: KindList}
	for dec.More() {
		elem, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		node.Elems = append(node.Elems, elem)
	}
	if _, err := dec.Token(); err != nil { // consume ']'
		return nil, errors.Wrap(errors.ErrParseFailure, err.Error())
	}
	return node, nil
}

func parseObject(dec *json.Decoder) (*Node, error) {
	node := &Node{Kind: KindRecord}
	seen := make(map[string]bool)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(errors.ErrParseFailure, err.Error())
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, errors.Wrapf(errors.ErrParseFailure, "non-string record key %v", keyTok)
		}
		// Duplicate keys make the document ambiguous; encoding/json would
		// silently keep the last value, which is exactly the kind of
		// recovery the grammar forbids.
		if seen[key] {
			return nil, errors.Wrapf(errors.ErrParseFailure, "duplicate record key %q", key)
		}
		seen[key] = true

		value, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		node.Fields = append(node.Fields, Field{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil { // consume '}'
		return nil, errors.Wrap(errors.ErrParseFailure, err.Error())
	}

	// {"$set": [...]} denotes an unordered collection
	if len(node.Fields) == 1 && node.Fields[0].Key == setKey {
		inner := node.Fields[0].Value
		if inner.Kind != KindList {
			return nil, errors.Wrap(errors.ErrParseFailure, "$set value must be an array")
		}
		return &Node{Kind: KindSet, Elems: inner.Elems}, nil
	}
	for _, f := range node.Fields {
		if f.Key == setKey {
			return nil, errors.Wrap(errors.ErrParseFailure, "$set must be the only key of its object")
		}
	}

	return node, nil
}
