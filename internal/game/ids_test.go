package game

import (
	"strings"
	"testing"
)

func TestValidRoomID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		id   string
		ok   bool
	}{
		{name: "valid", id: "abc123", ok: true},
		{name: "valid_longer", id: "abc123xyz0", ok: true},
		{name: "missing", id: "", ok: false},
		{name: "invalid_chars_upper", id: "Abc", ok: false},
		{name: "invalid_chars_dash", id: "abc-def", ok: false},
		{name: "invalid_chars_slash", id: "abc/def", ok: false},
		{name: "too_long", id: strings.Repeat("a", 65), ok: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidRoomID(tc.id); got != tc.ok {
				t.Fatalf("ValidRoomID(%q)=%v, want %v", tc.id, got, tc.ok)
			}
		})
	}
}

func TestRandID_IsValidRoomID(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := randID(RoomIDLength)
		if len(id) != RoomIDLength || !ValidRoomID(id) {
			t.Fatalf("randID produced %q", id)
		}
	}
}
