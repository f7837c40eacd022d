package jsonutil

import (
	"encoding/json"
	"testing"
)

func TestFlexibleString(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{name: "string value", input: "hello", want: "hello"},
		{name: "integer value", input: 42, want: "42"},
		{name: "int64 value", input: int64(-7), want: "-7"},
		{name: "integral float", input: float64(30), want: "30"},
		{name: "float value", input: 3.14, want: "3.14"},
		{name: "boolean true", input: true, want: "true"},
		{name: "nil", input: nil, want: ""},
		{name: "list falls back to json", input: []any{"CNCL", "EXPD"}, want: `["CNCL","EXPD"]`},
		{name: "raw string", input: json.RawMessage(`"hello"`), want: "hello"},
		{name: "raw large integer", input: json.RawMessage(`9007199254740992`), want: "9007199254740992"},
		{name: "raw null", input: json.RawMessage(`null`), want: ""},
		{name: "raw object stays raw", input: json.RawMessage(`{"key":"value"}`), want: `{"key":"value"}`},
		{name: "empty string", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlexibleString(tt.input)
			if got != tt.want {
				t.Errorf("FlexibleString(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
