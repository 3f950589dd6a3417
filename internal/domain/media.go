package domain

import "strings"

// MediaBasePath is the serving prefix applied to bare media filenames.
const MediaBasePath = "/media/"

// ResolveMediaSource prefixes bare filenames with the media-serving path.
// Absolute paths and URLs pass through untouched.
func ResolveMediaSource(src string) string {
	if src == "" {
		return ""
	}
	if strings.HasPrefix(src, "/") || strings.HasPrefix(src, "http") {
		return src
	}
	return MediaBasePath + src
}
