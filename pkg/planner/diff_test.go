package planner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuya-takeyama/bulklift/pkg/objstore"
)

func records(names ...string) []objstore.ObjectRecord {
	out := make([]objstore.ObjectRecord, 0, len(names))
	for _, n := range names {
		out = append(out, objstore.ObjectRecord{Name: n, Size: int64(len(n))})
	}
	return out
}

func names(recs []objstore.ObjectRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Name)
	}
	return out
}

func TestDiff(t *testing.T) {
	root := filepath.Join("/srv", "data")
	local := func(ns ...string) []string {
		out := make([]string, 0, len(ns))
		for _, n := range ns {
			out = append(out, LocalPath(root, n))
		}
		return out
	}

	tests := []struct {
		name     string
		remote   []objstore.ObjectRecord
		local    []string
		excludes []string
		want     []string
	}{
		{
			name:   "remote object missing locally",
			remote: records("a", "b", "c"),
			local:  local("a", "c"),
			want:   []string{"b"},
		},
		{
			name:   "identical listings",
			remote: records("a", "dir/b"),
			local:  local("a", "dir/b"),
			want:   []string{},
		},
		{
			name:   "empty remote",
			remote: nil,
			local:  local("a"),
			want:   []string{},
		},
		{
			name:   "empty local deletes everything",
			remote: records("z", "a"),
			local:  nil,
			want:   []string{"a", "z"},
		},
		{
			name:   "comparison is case sensitive",
			remote: records("Readme.md"),
			local:  local("README.md"),
			want:   []string{"Readme.md"},
		},
		{
			name:     "excluded remote names are kept",
			remote:   records("keep.tmp", "old.txt", "logs/x.log"),
			local:    nil,
			excludes: []string{"*.tmp", "logs/**"},
			want:     []string{"old.txt"},
		},
		{
			name:     "directory pattern keeps everything below it",
			remote:   records("keep.txt", "logs/app.log", "logs/2024/01.log", "logsbook.txt"),
			local:    local("keep.txt"),
			excludes: []string{"logs/"},
			want:     []string{"logsbook.txt"},
		},
		{
			name:   "unclean local paths still match",
			remote: records("dir/file"),
			local:  []string{root + "/dir/./file"},
			want:   []string{},
		},
		{
			name:   "duplicate remote names reported once",
			remote: records("b", "b"),
			local:  nil,
			want:   []string{"b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Diff(tt.remote, tt.local, root, tt.excludes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestDiffIsOrderIndependent(t *testing.T) {
	root := t.TempDir()
	remote := records("e", "a", "d", "b", "c")
	local := []string{LocalPath(root, "d"), LocalPath(root, "a")}

	want, err := Diff(remote, local, root, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "e"}, names(want))

	reversedRemote := make([]objstore.ObjectRecord, len(remote))
	for i, r := range remote {
		reversedRemote[len(remote)-1-i] = r
	}
	reversedLocal := []string{local[1], local[0]}

	got, err := Diff(reversedRemote, reversedLocal, root, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// inputs are not modified
	assert.Equal(t, []string{"e", "a", "d", "b", "c"}, names(remote))
}

func TestDiffAgainstItself(t *testing.T) {
	root := t.TempDir()
	remote := records("x", "y/z", "y/w")
	local := make([]string, 0, len(remote))
	for _, r := range remote {
		local = append(local, LocalPath(root, r.Name))
	}

	got, err := Diff(remote, local, root, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDiffInvalidExclude(t *testing.T) {
	_, err := Diff(records("a"), nil, "/srv", []string{"[unterminated"})
	assert.Error(t, err)
}
