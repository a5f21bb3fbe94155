package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/julienschmidt/httprouter"
)

const (
	maxImageBytes = 10 << 20
	maxImageWidth = 2000
)

var allowedImageHosts = map[string]bool{
	"www.themealdb.com":   true,
	"themealdb.com":       true,
	"img.spoonacular.com": true,
	"images.unsplash.com": true,
}

var errHostNotAllowed = errors.New("domain not allowed")

// imageProxy relays recipe images from a fixed set of hosts, optionally
// downscaled, so mobile clients can load them from our origin.
type imageProxy struct {
	client *http.Client
	hosts  map[string]bool
}

func newImageProxy() *imageProxy {
	p := &imageProxy{hosts: allowedImageHosts}
	p.client = &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return errors.New("stopped after 3 redirects")
			}
			if !p.allowed(req.URL) {
				return errHostNotAllowed
			}
			return nil
		},
	}
	return p
}

func (p *imageProxy) allowed(u *url.URL) bool {
	return (u.Scheme == "https" || u.Scheme == "http") && p.hosts[u.Hostname()]
}

// fetch returns the image body and its content type. A non-200 upstream
// status is returned as is with a nil body.
func (p *imageProxy) fetch(r *http.Request, raw string) ([]byte, string, int, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, raw, nil)
	if err != nil {
		return nil, "", 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", resp.StatusCode, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", 0, err
	}
	if len(body) > maxImageBytes {
		return nil, "", 0, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "image/jpeg"
	}
	return body, ct, http.StatusOK, nil
}

// resize scales the image to width, keeping the aspect ratio, and re-encodes
// it as JPEG. Images already narrower than width are returned unchanged.
func resize(body []byte, width int) ([]byte, bool, error) {
	img, err := imaging.Decode(bytes.NewReader(body), imaging.AutoOrientation(true))
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Dx() <= width {
		return body, false, nil
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Resize(img, width, 0, imaging.Lanczos), imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, false, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), true, nil
}

func (s *Server) proxyImage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	raw := r.URL.Query().Get("url")
	u, err := url.Parse(raw)
	if raw == "" || err != nil || !s.proxy.allowed(u) {
		http.Error(w, "Domain not allowed", http.StatusForbidden)
		return
	}
	width, err := strconv.Atoi(r.URL.Query().Get("w"))
	if err != nil || width < 0 {
		width = 0
	}
	width = min(width, maxImageWidth)

	body, ct, status, err := s.proxy.fetch(r, u.String())
	if err != nil {
		log.Printf("image proxy fetch %s failed: %v", u.Host, err)
		http.Error(w, "Upstream fetch failed", http.StatusBadGateway)
		return
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}

	if width > 0 {
		out, resized, err := resize(body, width)
		if err != nil {
			log.Printf("image proxy resize failed, serving original: %v", err)
		} else if resized {
			body, ct = out, "image/jpeg"
		}
	}

	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
