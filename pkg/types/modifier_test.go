package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModifiersRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		m    Modifiers
	}{
		{"plain name", Modifiers{Name: "title"}},
		{"required only", Modifiers{Name: "title", Required: true}},
		{"multi only", Modifiers{Name: "tags", Multi: true}},
		{"alias only", Modifiers{Name: "dob", Alias: "Date of birth"}},
		{"required and multi", Modifiers{Name: "tags", Required: true, Multi: true}},
		{"all modifiers", Modifiers{Name: "dob", Alias: "Date of birth", Required: true, Multi: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeModifiers(tt.m.Encode())
			assert.Equal(t, tt.m, got)
		})
	}
}

func TestDecodeModifiersAnyOrder(t *testing.T) {
	// Every permutation of the three markers must decode identically.
	want := Modifiers{Name: "dob", Alias: "x", Required: true, Multi: true}
	encodings := []string{
		":ALIAS=x::!NULL::MULTI:dob",
		":ALIAS=x::MULTI::!NULL:dob",
		":!NULL::ALIAS=x::MULTI:dob",
		":!NULL::MULTI::ALIAS=x:dob",
		":MULTI::ALIAS=x::!NULL:dob",
		":MULTI::!NULL::ALIAS=x:dob",
	}
	for _, enc := range encodings {
		assert.Equal(t, want, DecodeModifiers(enc), "encoding %q", enc)
	}
}

func TestDecodeModifiersEdgeCases(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  Modifiers
	}{
		{"empty value", "", Modifiers{}},
		{"empty alias", ":ALIAS=:name", Modifiers{Name: "name", Alias: ""}},
		{"name containing colon", "a:b", Modifiers{Name: "a:b"}},
		{"unterminated alias kept as name", ":ALIAS=x", Modifiers{Name: ":ALIAS=x"}},
		{"marker text after name is not stripped", "name:MULTI:", Modifiers{Name: "name:MULTI:"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeModifiers(tt.value))
		})
	}
}

func TestResolveBasicType(t *testing.T) {
	id, ok := ResolveBasicType("SHORT")
	assert.True(t, ok)
	assert.Equal(t, TypeShort, id)

	_, ok = ResolveBasicType("short")
	assert.False(t, ok, "resolution is case-sensitive on canonical names")
}

func TestIsSystemType(t *testing.T) {
	assert.True(t, IsSystemType(TypeShort))
	assert.True(t, IsSystemType(SystemTypeMax-1))
	assert.False(t, IsSystemType(SystemTypeMax))
	assert.False(t, IsSystemType(0))
	assert.False(t, IsSystemType(-3))
}
