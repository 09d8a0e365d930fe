package queryir

// Keys returns every Key referenced by p in left-to-right order.
// Duplicates are preserved. A nil predicate yields nil.
func Keys(p Predicate) []Key {
	var keys []Key
	collectKeys(p, &keys)
	return keys
}

func collectKeys(p Predicate, keys *[]Key) {
	switch pred := p.(type) {
	case Eq:
		*keys = append(*keys, pred.Key)
	case Ne:
		*keys = append(*keys, pred.Key)
	case Gt:
		*keys = append(*keys, pred.Key)
	case Gte:
		*keys = append(*keys, pred.Key)
	case Lt:
		*keys = append(*keys, pred.Key)
	case Lte:
		*keys = append(*keys, pred.Key)
	case Like:
		*keys = append(*keys, pred.Key)
	case Nlike:
		*keys = append(*keys, pred.Key)
	case In:
		*keys = append(*keys, pred.Key)
	case Nin:
		*keys = append(*keys, pred.Key)
	case And:
		for _, child := range pred.Predicates {
			collectKeys(child, keys)
		}
	case Or:
		for _, child := range pred.Predicates {
			collectKeys(child, keys)
		}
	}
}

// Keys returns the key referenced by every directive, in order.
func (p Projection) Keys() []Key {
	keys := make([]Key, 0, len(p))
	for _, d := range p {
		switch dir := d.(type) {
		case Include:
			keys = append(keys, dir.Key)
		case Exclude:
			keys = append(keys, dir.Key)
		}
	}
	return keys
}

// Keys returns the key referenced by every sort directive, in order.
func (o OrderBy) Keys() []Key {
	keys := make([]Key, 0, len(o))
	for _, s := range o {
		keys = append(keys, SortKey(s))
	}
	return keys
}

// SortKey returns the key of an Asc or Desc directive.
func SortKey(s Sort) Key {
	switch dir := s.(type) {
	case Asc:
		return dir.Key
	case Desc:
		return dir.Key
	default:
		return ""
	}
}
