package statvalue

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNeutralValue is returned when encoding the empty-sum sentinel.
var ErrNeutralValue = errors.New("neutral value cannot be encoded")

// Marshal encodes v as a sorted category -> metric -> number YAML mapping.
func Marshal(v Value) ([]byte, error) {
	if v.neutral {
		return nil, ErrNeutralValue
	}

	data, err := yaml.Marshal(v.Nested())
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}

	return data, nil
}

// Unmarshal decodes a record produced by Marshal.
func Unmarshal(data []byte) (Value, error) {
	var nested map[string]map[string]float64

	err := yaml.Unmarshal(data, &nested)
	if err != nil {
		return Value{}, fmt.Errorf("unmarshal value: %w", err)
	}

	return FromNested(nested), nil
}

// Method is one block entry of a file record.
type Method struct {
	Name  string `yaml:"name"`
	Grade string `yaml:"grade"`
	Lines int    `yaml:"lines"`
}

// String renders the entry the way method diffs show it.
func (m Method) String() string {
	return fmt.Sprintf("%s: %s * %d", m.Name, m.Grade, m.Lines)
}

// SortMethods orders entries by name, then grade.
func SortMethods(methods []Method) {
	slices.SortStableFunc(methods, func(a, b Method) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}

		return strings.Compare(a.Grade, b.Grade)
	})
}

// MarshalMethods encodes a sorted copy of methods.
func MarshalMethods(methods []Method) ([]byte, error) {
	sorted := slices.Clone(methods)
	SortMethods(sorted)

	if sorted == nil {
		sorted = []Method{}
	}

	data, err := yaml.Marshal(sorted)
	if err != nil {
		return nil, fmt.Errorf("marshal methods: %w", err)
	}

	return data, nil
}

// UnmarshalMethods decodes a method list produced by MarshalMethods.
func UnmarshalMethods(data []byte) ([]Method, error) {
	var methods []Method

	err := yaml.Unmarshal(data, &methods)
	if err != nil {
		return nil, fmt.Errorf("unmarshal methods: %w", err)
	}

	return methods, nil
}
