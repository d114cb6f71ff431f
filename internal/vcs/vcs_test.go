package vcs

import (
	"reflect"
	"testing"
)

func TestParsePorcelain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		output string
		want   []string
	}{
		{
			name:   "empty",
			output: "",
			want:   nil,
		},
		{
			name:   "modified and untracked",
			output: " M libs/core/src/lib.rs\n?? apps/web/new.ts",
			want:   []string{"apps/web/new.ts", "libs/core/src/lib.rs"},
		},
		{
			name:   "rename takes the new path",
			output: "R  libs/old/project.toml -> libs/new/project.toml",
			want:   []string{"libs/new/project.toml"},
		},
		{
			name:   "staged and unstaged same file",
			output: "MM libs/core/a.go\nMM libs/core/a.go",
			want:   []string{"libs/core/a.go"},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := parsePorcelain(tc.output)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("parsePorcelain = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMergePaths(t *testing.T) {
	t.Parallel()
	got := mergePaths([]string{"b", "a"}, []string{"a", "c"})
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("mergePaths = %v, want [a b c]", got)
	}
}

func TestSplitLines(t *testing.T) {
	t.Parallel()
	got := splitLines("a\n\nb\n")
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("splitLines = %v, want [a b]", got)
	}
}
