package model

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrNoYoutubeID = errors.New("no youtube video id")

	youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,20}$`)
)

// ParseYoutubeID extracts the video id from a watch, short link or shorts
// URL. A bare id is returned as is.
func ParseYoutubeID(raw string) (YoutubeVideoID, error) {
	raw = strings.TrimSpace(raw)
	if youtubeIDPattern.MatchString(raw) {
		return YoutubeVideoID(raw), nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrNoYoutubeID
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch {
	case host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	case host == "youtube.com" && u.Path == "/watch":
		id = u.Query().Get("v")
	case host == "youtube.com" && strings.HasPrefix(u.Path, "/shorts/"):
		id = strings.Trim(strings.TrimPrefix(u.Path, "/shorts/"), "/")
	}
	if !youtubeIDPattern.MatchString(id) {
		return "", ErrNoYoutubeID
	}

	return YoutubeVideoID(id), nil
}
