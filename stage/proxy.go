package stage

import (
	"net/url"
	"strconv"
	"strings"
)

func formatPx(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ProxiedURL rewrites an absolute http(s) resource URL so it is fetched
// through proxyURL, passing the original location in the "url" query
// parameter. Other URLs, and all URLs when proxyURL is empty, are returned
// unchanged.
func ProxiedURL(proxyURL, src string) string {
	if proxyURL == "" {
		return src
	}
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return src
	}
	sep := "?"
	if strings.Contains(proxyURL, "?") {
		sep = "&"
	}
	return proxyURL + sep + "url=" + url.QueryEscape(src)
}
