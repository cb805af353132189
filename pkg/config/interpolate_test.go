package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		section map[string]string
		scopes  []map[string]string
		want    map[string]string
		wantErr error
	}{
		{
			name:    "plain values",
			section: map[string]string{"root": "/srv/sm"},
			want:    map[string]string{"root": "/srv/sm"},
		},
		{
			name: "nested references",
			section: map[string]string{
				"root":      "/srv/sm",
				"scripting": "%(root)s/scripting",
				"include":   "%(scripting)s/include",
			},
			want: map[string]string{
				"root":      "/srv/sm",
				"scripting": "/srv/sm/scripting",
				"include":   "/srv/sm/scripting/include",
			},
		},
		{
			name:    "reference from outer scope",
			section: map[string]string{"doc": "%(base)s/doc"},
			scopes:  []map[string]string{{"base": "/opt"}},
			want:    map[string]string{"doc": "/opt/doc"},
		},
		{
			name:    "section shadows scope",
			section: map[string]string{"root": "/a", "doc": "%(root)s/doc"},
			scopes:  []map[string]string{{"root": "/b"}},
			want:    map[string]string{"root": "/a", "doc": "/a/doc"},
		},
		{
			name:    "reference names are case insensitive",
			section: map[string]string{"root": "/a", "doc": "%(ROOT)s/doc"},
			want:    map[string]string{"root": "/a", "doc": "/a/doc"},
		},
		{
			name:    "unknown reference",
			section: map[string]string{"doc": "%(nope)s/doc"},
			wantErr: ErrUnknownReference,
		},
		{
			name:    "self reference",
			section: map[string]string{"a": "%(a)s"},
			wantErr: ErrReferenceCycle,
		},
		{
			name:    "indirect cycle",
			section: map[string]string{"a": "%(b)s", "b": "%(c)s", "c": "%(a)s/x"},
			wantErr: ErrReferenceCycle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.section, tt.scopes...)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_DoesNotModifyInput(t *testing.T) {
	section := map[string]string{"root": "/a", "doc": "%(root)s/doc"}

	_, err := Resolve(section)
	require.NoError(t, err)

	assert.Equal(t, "%(root)s/doc", section["doc"])
}

func TestResolveValue(t *testing.T) {
	got, err := ResolveValue("%(scripting)s/spcomp", map[string]string{"scripting": "/srv/scripting"})
	require.NoError(t, err)
	assert.Equal(t, "/srv/scripting/spcomp", got)

	_, err = ResolveValue("%(missing)s", map[string]string{})
	assert.ErrorIs(t, err, ErrUnknownReference)
}
