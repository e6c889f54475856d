// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package proxy

import (
	"regexp"
	"strings"

	"github.com/ManuGH/hlsgate/internal/netutil"
)

const (
	tagStreamInf = "#EXT-X-STREAM-INF"
	tagMedia     = "#EXT-X-MEDIA"
)

// uriAttr matches the quoted URI attribute of a tag line.
var uriAttr = regexp.MustCompile(`URI="([^"]+)"`)

// MasterPath is the proxy path of a session's master playlist.
func MasterPath(sessionID string) string {
	return "/hls/" + sessionID + "/master.m3u8"
}

func mediaPath(sessionID, absURL string) string {
	return "/hls/" + sessionID + "/media/" + netutil.EncodeComponent(absURL)
}

func segmentPath(sessionID, absURL string) string {
	return "/hls/" + sessionID + "/segment/" + netutil.EncodeComponent(absURL)
}

// RewriteMaster points every variant and rendition URI of a master playlist
// at the media route of sessionID. Relative URIs resolve against masterURL.
// All other lines are kept verbatim.
func RewriteMaster(text, sessionID, masterURL string) string {
	lines := strings.Split(text, "\n")
	variantPending := false

	for i, line := range lines {
		body, cr := splitCR(line)
		trimmed := strings.TrimSpace(body)

		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, tagStreamInf):
			variantPending = true
		case variantPending && !strings.HasPrefix(trimmed, "#"):
			abs := netutil.ResolveReference(trimmed, masterURL)
			lines[i] = mediaPath(sessionID, abs) + cr
			variantPending = false
		case strings.HasPrefix(trimmed, tagMedia) && uriAttr.MatchString(trimmed):
			lines[i] = replaceURIAttr(trimmed, func(uri string) string {
				return mediaPath(sessionID, netutil.ResolveReference(uri, masterURL))
			}) + cr
		}
	}
	return strings.Join(lines, "\n")
}

// RewriteMedia points every segment line of a media playlist at the segment
// route of sessionID. Tags, comments and blank lines are kept verbatim.
func RewriteMedia(text, sessionID, mediaURL string) string {
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		body, cr := splitCR(line)
		trimmed := strings.TrimSpace(body)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		abs := netutil.ResolveReference(trimmed, mediaURL)
		lines[i] = segmentPath(sessionID, abs) + cr
	}
	return strings.Join(lines, "\n")
}

// replaceURIAttr rewrites the first URI="..." attribute of line.
func replaceURIAttr(line string, rewrite func(string) string) string {
	loc := uriAttr.FindStringSubmatchIndex(line)
	if loc == nil {
		return line
	}
	uri := line[loc[2]:loc[3]]
	return line[:loc[2]] + rewrite(uri) + line[loc[3]:]
}

func splitCR(line string) (body, cr string) {
	if strings.HasSuffix(line, "\r") {
		return line[:len(line)-1], "\r"
	}
	return line, ""
}
