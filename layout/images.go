package layout

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"

	// Decoders for <img> sources.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/porticus-lab/go-dom-pdf/stage"
)

// maxImageBytes caps a single fetched image.
const maxImageBytes = 32 << 20

var errUnsupportedSource = errors.New("layout: unsupported image source")

// fetchImage loads an <img> source. data: URLs are decoded in place;
// http(s) URLs are fetched with client, through proxyURL when set.
func fetchImage(ctx context.Context, client *http.Client, proxyURL, src string) (image.Image, error) {
	src = strings.TrimSpace(src)
	switch {
	case strings.HasPrefix(src, "data:"):
		data, err := decodeDataURL(src)
		if err != nil {
			return nil, err
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("layout: decoding data url: %w", err)
		}
		return img, nil
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return fetchRemote(ctx, client, stage.ProxiedURL(proxyURL, src))
	}
	return nil, fmt.Errorf("%w: %q", errUnsupportedSource, src)
}

func fetchRemote(ctx context.Context, client *http.Client, target string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("layout: building image request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("layout: fetching image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("layout: fetching image: %s returned %s", target, resp.Status)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("layout: decoding %s: %w", target, err)
	}
	return img, nil
}

// decodeDataURL returns the payload of an RFC 2397 data URL.
func decodeDataURL(s string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, errors.New("layout: malformed data url")
	}
	if strings.HasSuffix(meta, ";base64") {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("layout: data url: %w", err)
		}
		return b, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("layout: data url: %w", err)
	}
	return []byte(text), nil
}
