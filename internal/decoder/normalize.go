package decoder

import "github.com/hamba/avro/v2"

// Normalize walks a generically decoded value alongside its schema and
// replaces union wrappers ({"long": 5}) with the wrapped value.
func Normalize(schema avro.Schema, v any) any {
	if v == nil {
		return nil
	}
	switch s := schema.(type) {
	case *avro.RefSchema:
		return Normalize(s.Schema(), v)
	case *avro.RecordSchema:
		rec, ok := v.(map[string]any)
		if !ok {
			return v
		}
		for _, f := range s.Fields() {
			if fv, ok := rec[f.Name()]; ok {
				rec[f.Name()] = Normalize(f.Type(), fv)
			}
		}
		return rec
	case *avro.ArraySchema:
		items, ok := v.([]any)
		if !ok {
			return v
		}
		for i := range items {
			items[i] = Normalize(s.Items(), items[i])
		}
		return items
	case *avro.MapSchema:
		m, ok := v.(map[string]any)
		if !ok {
			return v
		}
		for k := range m {
			m[k] = Normalize(s.Values(), m[k])
		}
		return m
	case *avro.UnionSchema:
		return normalizeUnion(s, v)
	default:
		return v
	}
}

func normalizeUnion(s *avro.UnionSchema, v any) any {
	if wrapped, ok := v.(map[string]any); ok && len(wrapped) == 1 {
		for name, inner := range wrapped {
			for _, t := range s.Types() {
				if typeName(t) == name {
					return Normalize(t, inner)
				}
			}
		}
	}

	// Already unwrapped. Recurse when the branch is unambiguous.
	var branch avro.Schema
	for _, t := range s.Types() {
		if t.Type() == avro.Null {
			continue
		}
		if branch != nil {
			return v
		}
		branch = t
	}
	if branch == nil {
		return v
	}
	return Normalize(branch, v)
}

func typeName(s avro.Schema) string {
	if ref, ok := s.(*avro.RefSchema); ok {
		return ref.Schema().FullName()
	}
	if named, ok := s.(avro.NamedSchema); ok {
		return named.FullName()
	}
	return string(s.Type())
}
