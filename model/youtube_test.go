package model_test

import (
	"testing"

	"ewintr.nl/conceptube/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYoutubeID(t *testing.T) {
	for _, tc := range []struct {
		name  string
		raw   string
		exp   model.YoutubeVideoID
		valid bool
	}{
		{name: "bare id", raw: "dQw4w9WgXcQ", exp: "dQw4w9WgXcQ", valid: true},
		{name: "watch", raw: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", exp: "dQw4w9WgXcQ", valid: true},
		{name: "watch with extra params", raw: "https://youtube.com/watch?t=42&v=dQw4w9WgXcQ", exp: "dQw4w9WgXcQ", valid: true},
		{name: "mobile", raw: "https://m.youtube.com/watch?v=dQw4w9WgXcQ", exp: "dQw4w9WgXcQ", valid: true},
		{name: "short link", raw: "https://youtu.be/dQw4w9WgXcQ", exp: "dQw4w9WgXcQ", valid: true},
		{name: "shorts", raw: "https://www.youtube.com/shorts/abcDEF12345", exp: "abcDEF12345", valid: true},
		{name: "other site", raw: "https://vimeo.com/12345678"},
		{name: "channel page", raw: "https://www.youtube.com/channel/UCabc"},
		{name: "empty", raw: ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			act, err := model.ParseYoutubeID(tc.raw)
			if !tc.valid {
				require.ErrorIs(t, err, model.ErrNoYoutubeID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.exp, act)
		})
	}
}
