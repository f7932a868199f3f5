package utils

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// EncodeDataURL returns data as a base64 data URL. The media type is sniffed
// from the content.
func EncodeDataURL(data []byte) (url string, mediaType string) {
	mediaType = http.DetectContentType(data)
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), mediaType
}

func IsImageMediaType(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/")
}

// DescribeDataURL returns the media type and decoded size of a base64 data
// URL. Anything else yields "", 0.
func DescribeDataURL(url string) (mediaType string, size int) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", 0
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", 0
	}
	mediaType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return mediaType, len(payload)
	}
	return mediaType, base64.StdEncoding.DecodedLen(len(payload)) - strings.Count(payload[max(0, len(payload)-2):], "=")
}
