package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostID(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		input  string
		wantID string
		wantOK bool
	}{
		{"article", "https://tuoitre.vn/gia-vang-hom-nay-20240501083015123.htm", "20240501083015123", true},
		{"eight digits", "https://tuoitre.vn/tin-12345678.htm", "12345678", true},
		{"seven digits", "https://tuoitre.vn/tin-1234567.htm", "", false},
		{"listing page", "https://tuoitre.vn/thoi-su/trang-5.htm", "", false},
		{"letters", "https://tuoitre.vn/tin-1234abcd5678.htm", "", false},
		{"no dash", "https://tuoitre.vn/20240501083015123.htm", "20240501083015123", true},
		{"query ignored", "https://tuoitre.vn/tin-20240501083015123.htm?ref=home", "20240501083015123", true},
		{"category root", "https://tuoitre.vn/thoi-su.htm", "", false},
		{"empty", "", "", false},
		{"unparseable", "http://%zz", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := PostID(tc.input)
			if tc.wantOK {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrNoIdentity)
			}
			assert.Equal(t, tc.wantID, id)
		})
	}
}

func TestCategoryLabelAndPageURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "thoi-su", CategoryLabel("https://tuoitre.vn/thoi-su.htm"))
	require.Equal(t, "https://tuoitre.vn/thoi-su.htm", PageURL("https://tuoitre.vn/thoi-su.htm", 1))
	require.Equal(t, "https://tuoitre.vn/thoi-su/trang-3.htm", PageURL("https://tuoitre.vn/thoi-su.htm", 3))
	require.Equal(t, "https://tuoitre.vn/ban-doc/trang-9.htm", PageURL("https://tuoitre.vn/ban-doc.htm", 9))
}

func TestResolveURL(t *testing.T) {
	t.Parallel()

	base := "https://tuoitre.vn"
	require.Equal(t, "https://tuoitre.vn/a.mp3", ResolveURL(base, "/a.mp3"))
	require.Equal(t, "https://tuoitre.vn/a.mp3", ResolveURL(base+"/", "a.mp3"))
	require.Equal(t, "https://cdn.example/x.jpg", ResolveURL(base, "https://cdn.example/x.jpg"))
	require.Equal(t, "https://cdn.example/x.jpg", ResolveURL(base, "//cdn.example/x.jpg"))
	require.Empty(t, ResolveURL(base, ""))
}

func TestFileExtension(t *testing.T) {
	t.Parallel()

	require.Equal(t, "m4a", FileExtension("https://tts.mediacdn.vn/2024/05/01/tuoitre-nu-12345678.m4a"))
	require.Equal(t, "mp3", FileExtension("https://tuoitre.vn/a.mp3?v=2"))
	require.Equal(t, "mp3", FileExtension("https://cdn.tuoitre.vn/v1.2/a.mp3#t=5"))
	require.Empty(t, FileExtension("https://tuoitre.vn/audio/stream?id=1"))
	require.Empty(t, FileExtension("https://cdn.tuoitre.vn/v1.2/stream"))
	require.Empty(t, FileExtension("http://%zz"))
}
