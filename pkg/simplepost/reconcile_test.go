package simplepost_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tendant/simple-post/pkg/simplepost"
)

func urlsOf(images []*simplepost.Image) []string {
	var out []string
	for _, img := range images {
		out = append(out, img.URL)
	}
	return out
}

func desiredURLs(images []simplepost.DesiredImage) []string {
	var out []string
	for _, img := range images {
		out = append(out, img.URL)
	}
	return out
}

func TestReconcileImages(t *testing.T) {
	u1 := &simplepost.Image{ID: 1, URL: "u1"}
	u2 := &simplepost.Image{ID: 2, URL: "u2"}

	tests := []struct {
		name       string
		existing   []*simplepost.Image
		desired    []simplepost.DesiredImage
		wantRemove []string
		wantAdd    []string
	}{
		{
			name:       "empty desired removes everything",
			existing:   []*simplepost.Image{u1, u2},
			desired:    nil,
			wantRemove: []string{"u1", "u2"},
		},
		{
			name:     "same url is a no-op",
			existing: []*simplepost.Image{u1},
			desired:  []simplepost.DesiredImage{{URL: "u1"}},
		},
		{
			name:       "replacement removes old and adds new",
			existing:   []*simplepost.Image{u1},
			desired:    []simplepost.DesiredImage{{URL: "u3"}},
			wantRemove: []string{"u1"},
			wantAdd:    []string{"u3"},
		},
		{
			name:     "first image",
			desired:  []simplepost.DesiredImage{{URL: "u1"}},
			wantAdd:  []string{"u1"},
			existing: nil,
		},
		{
			name:     "duplicates in desired are added once",
			desired:  []simplepost.DesiredImage{{URL: "u4"}, {URL: "u5"}, {URL: "u4"}},
			wantAdd:  []string{"u4", "u5"},
			existing: []*simplepost.Image{},
		},
		{
			name:       "mixed keeps matches",
			existing:   []*simplepost.Image{u1, u2},
			desired:    []simplepost.DesiredImage{{URL: "u2"}, {URL: "u6"}},
			wantRemove: []string{"u1"},
			wantAdd:    []string{"u6"},
		},
		{
			name: "nothing to nothing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta := simplepost.ReconcileImages(tt.existing, tt.desired)
			assert.Equal(t, tt.wantRemove, urlsOf(delta.ToRemove))
			assert.Equal(t, tt.wantAdd, desiredURLs(delta.ToAdd))
			assert.Equal(t, len(tt.wantRemove) == 0 && len(tt.wantAdd) == 0, delta.IsEmpty())
		})
	}
}

func TestReconcileImagesKeepsDimensions(t *testing.T) {
	w, h := 800, 600
	delta := simplepost.ReconcileImages(nil, []simplepost.DesiredImage{{URL: "u1", Width: &w, Height: &h}})
	if assert.Len(t, delta.ToAdd, 1) {
		assert.Equal(t, 800, *delta.ToAdd[0].Width)
		assert.Equal(t, 600, *delta.ToAdd[0].Height)
	}
}
