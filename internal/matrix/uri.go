package matrix

import (
	"fmt"
	"strings"
)

const uriScheme = "mxc://"

// ContentURI is a parsed content identifier (mxc://server/mediaID).
type ContentURI struct {
	Server  string
	MediaID string
}

// String reassembles the identifier in its wire form.
func (u ContentURI) String() string {
	return uriScheme + u.Server + "/" + u.MediaID
}

// ParseContentURI parses an mxc content identifier. The identifier must
// carry exactly a server name and a media ID; anything else is rejected.
func ParseContentURI(s string) (ContentURI, error) {
	if !strings.HasPrefix(s, uriScheme) {
		return ContentURI{}, fmt.Errorf("invalid content uri %q: missing %s scheme", s, uriScheme)
	}
	rest := strings.TrimPrefix(s, uriScheme)
	server, mediaID, ok := strings.Cut(rest, "/")
	if !ok || server == "" || mediaID == "" || strings.Contains(mediaID, "/") {
		return ContentURI{}, fmt.Errorf("invalid content uri %q", s)
	}
	return ContentURI{Server: server, MediaID: mediaID}, nil
}

// LocalPart extracts the local part of a user ID:
// "@alice:example.org" becomes "alice".
func LocalPart(userID string) string {
	s := strings.TrimPrefix(userID, "@")
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return s
}
