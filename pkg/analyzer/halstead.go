package analyzer

import "math"

// halsteadCounts accumulates operator and operand occurrences.
type halsteadCounts struct {
	operators map[string]int
	operands  map[string]int
	n1, n2    int
}

func newHalsteadCounts() halsteadCounts {
	return halsteadCounts{operators: make(map[string]int), operands: make(map[string]int)}
}

func (h *halsteadCounts) operator(tok string) {
	h.operators[tok]++
	h.n1++
}

func (h *halsteadCounts) operand(tok string) {
	h.operands[tok]++
	h.n2++
}

// metrics derives the Halstead measures, rounded to three decimals.
func (h *halsteadCounts) metrics() map[string]float64 {
	distinctOperators := float64(len(h.operators))
	distinctOperands := float64(len(h.operands))
	vocabulary := distinctOperators + distinctOperands
	length := float64(h.n1 + h.n2)

	var volume, difficulty float64

	if vocabulary > 0 {
		volume = length * math.Log2(vocabulary)
	}

	if distinctOperands > 0 {
		difficulty = distinctOperators / 2 * float64(h.n2) / distinctOperands
	}

	effort := difficulty * volume

	return map[string]float64{
		"h1":         distinctOperators,
		"h2":         distinctOperands,
		"N1":         float64(h.n1),
		"N2":         float64(h.n2),
		"vocabulary": vocabulary,
		"length":     length,
		"volume":     round3(volume),
		"difficulty": round3(difficulty),
		"effort":     round3(effort),
		"bugs":       round3(volume / 3000),
	}
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
