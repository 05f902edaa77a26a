package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	verr "github.com/treelang/treelang/error"
)

// Parse reads a grammar description in its JSON form:
//
//	{
//	    "name": "arithmetic",
//	    "rules": {
//	        "expression": {"type": "CHOICE", "members": [...]},
//	        ...
//	    },
//	    "extras": [{"type": "PATTERN", "value": "[ \\t\\n]+"}],
//	    "conflicts": [["rule_a", "rule_b"]]
//	}
//
// The declaration order of the entries in "rules" is preserved. Line
// comments (//) outside of string literals are tolerated and stripped
// before decoding.
func Parse(src io.Reader) (*Grammar, error) {
	b, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}

	g, err := parseGrammar(stripLineComments(b))
	if err != nil {
		return nil, &verr.SpecError{
			Cause: err,
		}
	}

	if g.Name == "" {
		return nil, &verr.SpecError{
			Cause: errNoGrammarName,
		}
	}
	if len(g.Rules) == 0 {
		return nil, &verr.SpecError{
			Cause: errNoRules,
		}
	}

	return g, nil
}

var (
	errNoGrammarName = fmt.Errorf("a grammar description needs a name")
	errNoRules       = fmt.Errorf("a grammar description needs at least one rule")
)

func parseGrammar(src []byte) (*Grammar, error) {
	dec := json.NewDecoder(bytes.NewReader(src))

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	g := &Grammar{}
	for dec.More() {
		key, err := decodeKey(dec)
		if err != nil {
			return nil, err
		}

		switch key {
		case "name":
			if err := dec.Decode(&g.Name); err != nil {
				return nil, fmt.Errorf("'name' must be a string: %w", err)
			}
		case "rules":
			rules, err := parseRules(dec)
			if err != nil {
				return nil, err
			}
			g.Rules = rules
		case "extras":
			var raws []json.RawMessage
			if err := dec.Decode(&raws); err != nil {
				return nil, fmt.Errorf("'extras' must be an array of rules: %w", err)
			}
			for _, raw := range raws {
				r, err := parseRule(raw)
				if err != nil {
					return nil, err
				}
				g.Extras = append(g.Extras, r)
			}
		case "conflicts":
			if err := dec.Decode(&g.Conflicts); err != nil {
				return nil, fmt.Errorf("'conflicts' must be an array of rule name arrays: %w", err)
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
		}
	}

	return g, nil
}

// parseRules walks the "rules" object token by token because the entry order
// is significant and encoding/json would shuffle it through a map.
func parseRules(dec *json.Decoder) ([]*NamedRule, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("'rules' must be an object: %w", err)
	}

	var rules []*NamedRule
	for dec.More() {
		name, err := decodeKey(dec)
		if err != nil {
			return nil, err
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("rule %v: %w", name, err)
		}
		r, err := parseRule(raw)
		if err != nil {
			return nil, fmt.Errorf("rule %v: %w", name, err)
		}

		rules = append(rules, &NamedRule{
			Name: name,
			Rule: r,
		})
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return rules, nil
}

type ruleJSON struct {
	Type    string            `json:"type"`
	Name    string            `json:"name"`
	Value   json.RawMessage   `json:"value"`
	Members []json.RawMessage `json:"members"`
	Content json.RawMessage   `json:"content"`
}

func parseRule(raw json.RawMessage) (Rule, error) {
	var r ruleJSON
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}

	switch r.Type {
	case "BLANK":
		return &BlankRule{}, nil
	case "SYMBOL":
		if r.Name == "" {
			return nil, fmt.Errorf("a SYMBOL rule needs a name")
		}
		return &SymbolRule{
			Name: r.Name,
		}, nil
	case "STRING":
		v, err := decodeStringValue(r.Value)
		if err != nil {
			return nil, fmt.Errorf("a STRING rule needs a string value: %w", err)
		}
		return &StringRule{
			Value: v,
		}, nil
	case "PATTERN":
		v, err := decodeStringValue(r.Value)
		if err != nil {
			return nil, fmt.Errorf("a PATTERN rule needs a string value: %w", err)
		}
		return &PatternRule{
			Value: v,
		}, nil
	case "CHOICE", "SEQ":
		if len(r.Members) == 0 {
			return nil, fmt.Errorf("a %v rule needs at least one member", r.Type)
		}
		members := make([]Rule, len(r.Members))
		for i, m := range r.Members {
			var err error
			members[i], err = parseRule(m)
			if err != nil {
				return nil, err
			}
		}
		if r.Type == "CHOICE" {
			return &ChoiceRule{
				Members: members,
			}, nil
		}
		return &SeqRule{
			Members: members,
		}, nil
	case "PREC", "PREC_LEFT", "PREC_RIGHT":
		var v int
		if len(r.Value) > 0 {
			if err := json.Unmarshal(r.Value, &v); err != nil {
				return nil, fmt.Errorf("a %v rule needs an integer value: %w", r.Type, err)
			}
		}
		if len(r.Content) == 0 {
			return nil, fmt.Errorf("a %v rule needs content", r.Type)
		}
		content, err := parseRule(r.Content)
		if err != nil {
			return nil, err
		}
		assoc := AssocNone
		switch r.Type {
		case "PREC_LEFT":
			assoc = AssocLeft
		case "PREC_RIGHT":
			assoc = AssocRight
		}
		return &PrecRule{
			Assoc:   assoc,
			Value:   v,
			Content: content,
		}, nil
	case "":
		return nil, fmt.Errorf("a rule needs a type")
	default:
		return nil, fmt.Errorf("unknown rule type: %v", r.Type)
	}
}

func decodeStringValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("value is missing")
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	return v, nil
}

func expectDelim(dec *json.Decoder, d json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != d {
		return fmt.Errorf("expected %v, found %v", d, tok)
	}
	return nil
}

func decodeKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected an object key, found %v", tok)
	}
	return key, nil
}

// stripLineComments removes // comments that appear outside of string
// literals so that annotated grammar descriptions remain loadable.
func stripLineComments(src []byte) []byte {
	var out bytes.Buffer
	inStr := false
	escaped := false
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inStr {
			out.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inStr = false
			}
			continue
		}
		if c == '"' {
			inStr = true
			out.WriteByte(c)
			continue
		}
		if c == '/' && i+1 < len(src) && src[i+1] == '/' {
			for i < len(src) && src[i] != '\n' {
				i++
			}
			if i < len(src) {
				out.WriteByte('\n')
			}
			continue
		}
		out.WriteByte(c)
	}
	return out.Bytes()
}
