package statvalue

import "maps"

// Zero returns a value with the keys of v and every number set to zero.
func Zero(v Value) Value {
	if v.neutral {
		return Neutral
	}

	values := make(map[Key]float64, len(v.values))
	for k := range v.values {
		values[k] = 0
	}

	return Value{values: values}
}

// Add returns a + b over the union of their keys.
func Add(a, b Value) Value {
	switch {
	case a.neutral:
		return b
	case b.neutral:
		return a
	}

	values := maps.Clone(a.values)
	if values == nil {
		values = make(map[Key]float64, len(b.values))
	}

	for k, n := range b.values {
		values[k] += n
	}

	return Value{values: values}
}

// Sub returns a - b over the union of their keys.
func Sub(a, b Value) Value {
	return Add(a, Scale(b, -1))
}

// Scale multiplies every number in v by k.
func Scale(v Value, k float64) Value {
	if v.neutral {
		return Neutral
	}

	values := make(map[Key]float64, len(v.values))
	for key, n := range v.values {
		values[key] = n * k
	}

	return Value{values: values}
}

// Sum adds all values. The sum of nothing is Neutral.
func Sum(values ...Value) Value {
	total := Neutral

	for _, v := range values {
		total = Add(total, v)
	}

	return total
}
