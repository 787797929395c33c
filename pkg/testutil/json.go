package testutil

import (
	"encoding/json"
	"testing"

	. "github.com/octohelm/x/testing"
)

// PrintJSON logs v as indented JSON.
func PrintJSON(t testing.TB, v any) {
	t.Helper()

	data, err := json.MarshalIndent(v, "", "  ")
	Expect(t, err, Be[error](nil))
	t.Log(string(data))
}
