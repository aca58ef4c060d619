package main

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"sqlsink/internal/item"
	"sqlsink/internal/schema"
)

// envelope is one input line:
//
//	{"destination":"pages","fields":{"url":"https://...","title":"..."}}
type envelope struct {
	Destination string         `json:"destination"`
	Fields      map[string]any `json:"fields"`
}

// decodeRecord parses one NDJSON line into a record for a registered
// destination. Integral numbers become int64 and other numbers float64;
// nested objects and arrays are stored as their JSON text.
func decodeRecord(reg *schema.Registry, line []byte) (*item.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if env.Destination == "" {
		return nil, fmt.Errorf("decode: missing \"destination\"")
	}
	dest, ok := reg.Lookup(env.Destination)
	if !ok {
		return nil, fmt.Errorf("unknown destination %q", env.Destination)
	}

	values := make(map[string]any, len(env.Fields))
	for k, v := range env.Fields {
		nv, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		values[k] = nv
	}
	return item.New(dest, values), nil
}

func normalize(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		return x.Float64()
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return v, nil
	}
}
