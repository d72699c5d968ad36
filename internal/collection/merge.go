package collection

// Merge combines groups the way array_merge would, later parts overwriting earlier keys.
//
// When at least one part is a Collection the result is a new Collection that inherits
// policy and random source from the first one, holds every merged value as an original,
// carries the union of all payload pools and keeps the last non-empty prefix.
// Otherwise the result is a plain Map.
func Merge(name string, parts ...Accessor) Accessor {
	var merged *Collection
	for _, p := range parts {
		if c, ok := p.(*Collection); ok {
			merged = c.derive(name)
			merged.pool = nil
			break
		}
	}

	if merged == nil {
		out := NewMap()
		for _, p := range parts {
			if m, ok := p.(*Map); ok {
				for _, k := range m.keys {
					out.Set(k, m.values[k])
				}
			}
		}
		return out
	}

	for _, p := range parts {
		switch t := p.(type) {
		case *Collection:
			merged.AddPayloads(t.pool...)
			if t.prefix != "" {
				merged.prefix = t.prefix
				merged.visible = t.visible
			}
			// originals go last so written and deleted keys win over drawn payloads
			for _, k := range t.decided.keys {
				merged.Set(k, t.decided.values[k])
			}
			for _, k := range t.original.keys {
				merged.Set(k, t.original.values[k])
			}
		case *Map:
			for _, k := range t.keys {
				merged.Set(k, t.values[k])
			}
		}
	}

	return merged
}

// RawKeys returns every key known to a, including keys without a value
func RawKeys(a Accessor) []string {
	switch t := a.(type) {
	case *Collection:
		return t.RawKeys()
	case *Map:
		return t.RawKeys()
	default:
		return nil
	}
}

// KeyExists reports whether key is present in a. On collections this reads the
// key and may trigger a decision; on plain maps a nil value still counts.
func KeyExists(a Accessor, key string) (bool, error) {
	if m, ok := a.(*Map); ok {
		return m.Has(key), nil
	}
	return a.Exists(key)
}
