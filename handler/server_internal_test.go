package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShiftPath(t *testing.T) {
	for _, tc := range []struct {
		path    string
		expHead string
		expTail string
	}{
		{path: "", expHead: "", expTail: "/"},
		{path: "/", expHead: "", expTail: "/"},
		{path: "/api", expHead: "api", expTail: "/"},
		{path: "/api/", expHead: "api", expTail: "/"},
		{path: "/api/videos/abc/concepts", expHead: "api", expTail: "/videos/abc/concepts"},
		{path: "/api/../test", expHead: "test", expTail: "/"},
	} {
		t.Run(tc.path, func(t *testing.T) {
			head, tail := ShiftPath(tc.path)
			assert.Equal(t, tc.expHead, head)
			assert.Equal(t, tc.expTail, tail)
		})
	}
}

func TestRouteLabel(t *testing.T) {
	for _, tc := range []struct {
		path string
		exp  string
	}{
		{path: "/api/videos", exp: "/api/videos"},
		{path: "/api/videos/search", exp: "/api/videos/search"},
		{path: "/api/videos/0b4e7a0e-5b2a-4f5e-9f3e-1c2d3e4f5a6b", exp: "/api/videos/:id"},
		{path: "/api/videos/0b4e7a0e-5b2a-4f5e-9f3e-1c2d3e4f5a6b/concepts", exp: "/api/videos/:id/concepts"},
		{path: "/health/ready", exp: "/health/ready"},
	} {
		assert.Equal(t, tc.exp, routeLabel(tc.path))
	}
}
