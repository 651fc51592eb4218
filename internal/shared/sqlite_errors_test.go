package shared

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsSQLiteConflictError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		busy   bool
		locked bool
	}{
		{"nil", nil, false, false},
		{"busy text", errors.New("SQLITE_BUSY: cannot commit"), true, false},
		{"locked text", errors.New("database is locked (5)"), false, true},
		{"wrapped", fmt.Errorf("delete turns: %w", errors.New("database is locked")), false, true},
		{"unrelated", errors.New("no such table: turns"), false, false},
	}
	for _, c := range cases {
		if got := IsSQLiteBusyError(c.err); got != c.busy {
			t.Errorf("%s: IsSQLiteBusyError = %v, want %v", c.name, got, c.busy)
		}
		if got := IsSQLiteLockedError(c.err); got != c.locked {
			t.Errorf("%s: IsSQLiteLockedError = %v, want %v", c.name, got, c.locked)
		}
		if got := IsSQLiteConflictError(c.err); got != (c.busy || c.locked) {
			t.Errorf("%s: IsSQLiteConflictError = %v", c.name, got)
		}
	}
}
