package game

import "example.com/sketch-mvp/internal/room"

const HintIntervalSeconds = 20

// Mask hides every non-space character of word.
func Mask(word string) []string {
	runes := []rune(word)
	out := make([]string, len(runes))
	for i, r := range runes {
		if r == ' ' {
			out[i] = " "
		} else {
			out[i] = room.HiddenMarker
		}
	}
	return out
}

// RevealNext uncovers one hidden non-space position picked uniformly.
// When nothing is hidden (or hints do not match word) it returns hints unchanged.
func RevealNext(word string, hints []string, rng Rand) []string {
	runes := []rune(word)
	if len(runes) != len(hints) {
		return hints
	}
	var hidden []int
	for i, h := range hints {
		if h == room.HiddenMarker && runes[i] != ' ' {
			hidden = append(hidden, i)
		}
	}
	if len(hidden) == 0 {
		return hints
	}

	out := make([]string, len(hints))
	copy(out, hints)
	i := hidden[rng.IntN(len(hidden))]
	out[i] = string(runes[i])
	return out
}

// Revealed counts uncovered non-space slots.
func Revealed(hints []string) int {
	n := 0
	for _, h := range hints {
		if h != room.HiddenMarker && h != " " {
			n++
		}
	}
	return n
}

// HintDue is true when elapsed drawing time is a positive multiple of the interval.
func HintDue(drawDurationSeconds, timerSeconds int) bool {
	elapsed := drawDurationSeconds - timerSeconds
	return elapsed > 0 && elapsed%HintIntervalSeconds == 0
}
