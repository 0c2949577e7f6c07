package feature

// Entry is one named numeric feature value.
type Entry struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Vector is the list of feature results handed to a classifier.
type Vector []Entry

// Lookup returns the value of the entry called name.
func (v Vector) Lookup(name string) (float64, bool) {
	for _, e := range v {
		if e.Name == name {
			return e.Value, true
		}
	}
	return 0, false
}

// BuildVector evaluates features against ctx. Absent results are omitted.
// Booleans map to 1 and 0, numbers to their value and strings to an entry
// named "feature|value" with value 1.
func BuildVector[C Context](features []Feature[C], ctx C, env *Environment) (Vector, error) {
	vec := make(Vector, 0, len(features))
	for _, f := range features {
		r, err := Evaluate(f, ctx, env)
		if err != nil {
			return nil, err
		}
		v, ok := r.Get()
		if !ok {
			continue
		}
		switch t := v.(type) {
		case bool:
			value := 0.0
			if t {
				value = 1
			}
			vec = append(vec, Entry{Name: f.Name(), Value: value})
		case int:
			vec = append(vec, Entry{Name: f.Name(), Value: float64(t)})
		case float64:
			vec = append(vec, Entry{Name: f.Name(), Value: t})
		case string:
			vec = append(vec, Entry{Name: f.Name() + "|" + t, Value: 1})
		}
	}
	return vec, nil
}
