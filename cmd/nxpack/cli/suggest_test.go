// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"abc", "ab", 1},
		{"ab", "abc", 1},
		{"abc", "bac", 2},
		{"kitten", "sitting", 3},
		{"inspect", "inpsect", 2},
		{"store", "stor", 1},
	}

	for _, test := range tests {
		t.Run(test.a+"/"+test.b, func(t *testing.T) {
			if got := levenshtein(test.a, test.b); got != test.want {
				t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
			}
			if reverse := levenshtein(test.b, test.a); reverse != test.want {
				t.Errorf("levenshtein(%q, %q) = %d, want %d", test.b, test.a, reverse, test.want)
			}
		})
	}
}

func TestSuggestCommand(t *testing.T) {
	commands := []*Command{{Name: "forwarder"}, {Name: "inspect"}, {Name: "store"}, {Name: "zip"}}

	tests := []struct {
		input string
		want  string
	}{
		{"forwader", "forwarder"},
		{"insepct", "inspect"},
		{"stor", "store"},
		{"zp", "zip"},
		{"completely-unrelated", ""},
	}
	for _, test := range tests {
		if got := suggestCommand(test.input, commands); got != test.want {
			t.Errorf("suggestCommand(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestSuggestFlag(t *testing.T) {
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flagSet.String("decompress", "", "")
	flagSet.String("chunk-size", "", "")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--decompres", "zstd"}, "--decompress"},
		{[]string{"--chunk-size=1MiB", "--chunksize=2"}, "--chunk-size"},
		{[]string{"--zzzzzzzz"}, ""},
		{[]string{"positional"}, ""},
		{[]string{"--", "--decompres"}, ""},
	}
	for _, test := range tests {
		if got := suggestFlag(test.args, flagSet); got != test.want {
			t.Errorf("suggestFlag(%v) = %q, want %q", test.args, got, test.want)
		}
	}
}
