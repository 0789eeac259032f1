package value

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Bundle
	}{
		{"nil", nil, Positional{}},
		{"any slice", []any{1, "a", nil}, Positional{Integer(1), Text("a"), Null{}}},
		{"value slice", []Value{Boolean(true)}, Positional{Boolean(true)}},
		{"typed slice", []string{"a", "b"}, Positional{Text("a"), Text("b")}},
		{"array", [2]int{4, 5}, Positional{Integer(4), Integer(5)}},
		{"bytes are one blob", []byte{1, 2}, Positional{Blob{1, 2}}},
		{"scalar", 42, Positional{Integer(42)}},
		{"scalar string", "SELECT ':x'", Positional{Text("SELECT ':x'")}},
		{"map normalizes keys", map[string]any{"id": 1, ":name": "x", "@a": true},
			Named{"$id": Integer(1), ":name": Text("x"), "@a": Boolean(true)}},
		{"typed map", map[string]int{"a": 1}, Named{"$a": Integer(1)}},
		{"value map", map[string]Value{"$k": Null{}}, Named{"$k": Null{}}},
		{"bundle passthrough", Named{":x": Integer(1)}, Named{":x": Integer(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
}

func TestClassifyPointer(t *testing.T) {
	args := []any{1, 2}
	assert.Equal(t, Positional{Integer(1), Integer(2)}, Classify(&args))

	var nilArgs *[]any
	assert.Equal(t, Positional{}, Classify(nilArgs))
}

func TestClassifyNonStringKeysIsScalar(t *testing.T) {
	got := Classify(map[int]string{1: "a"})
	require.IsType(t, Positional{}, got)
	assert.Equal(t, 1, got.Len())
}

func TestNamedArgs(t *testing.T) {
	named := Named{":b": Integer(2), "$a": Text("x"), "@c": Boolean(true)}

	assert.Equal(t, []string{"$a", ":b", "@c"}, named.Keys())
	assert.Equal(t, []any{
		sql.Named("a", "x"),
		sql.Named("b", int64(2)),
		sql.Named("c", true),
	}, named.Args())
}

func TestPositionalArgs(t *testing.T) {
	pos := NewPositional(1, 2.5, "t", []byte{7}, nil, false)
	assert.Equal(t, []any{int64(1), 2.5, "t", []byte{7}, nil, false}, pos.Args())
	assert.Equal(t, 6, pos.Len())
}

func TestSigils(t *testing.T) {
	assert.Equal(t, "$id", NormalizeKey("id"))
	assert.Equal(t, ":id", NormalizeKey(":id"))
	assert.Equal(t, "@id", NormalizeKey("@id"))
	assert.Equal(t, "id", StripSigil("$id"))
	assert.Equal(t, "id", StripSigil("id"))
	assert.False(t, HasSigil("#id"))
}
