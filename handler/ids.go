package handler

import (
	"encoding/base64"

	"github.com/hiidef/hiitrack/apperr"
	"github.com/hiidef/hiitrack/fingerprint"
)

// idEncoding is the URL-safe, unpadded base64 spec §6 requires for
// every id in a response, matching
// original_source/hiitrack/lib/b64encode.py's uri_b64encode/uri_b64decode.
var idEncoding = base64.RawURLEncoding

func encodeID(id fingerprint.ID) string {
	return idEncoding.EncodeToString(id[:])
}

func decodeID(s string) (fingerprint.ID, error) {
	b, err := idEncoding.DecodeString(s)
	if err != nil || len(b) != fingerprint.Size {
		return fingerprint.ID{}, apperr.New(apperr.BadRequest, "invalid id "+s)
	}
	return fingerprint.FromBytes(b), nil
}
