package bypass

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/FranksOps/nichescout/internal/render"
)

// Detector examines a rendered page to determine if a bot protection mechanism
// blocked or challenged the request.
type Detector func(snap *render.Snapshot) (detected bool, source string)

// DefaultDetectors returns the standard list of bot protection detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectGoogleSorry,
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Analyze runs the snapshot through all provided detectors and returns the
// source of the first detection, or "" when the page looks clean.
func Analyze(snap *render.Snapshot, detectors []Detector) string {
	if snap == nil {
		return ""
	}
	for _, d := range detectors {
		if detected, source := d(snap); detected {
			return source
		}
	}
	return ""
}

func getHeader(headers map[string][]string, key string) string {
	if vals, ok := headers[key]; ok && len(vals) > 0 {
		return vals[0]
	}
	for k, vals := range headers {
		if strings.EqualFold(k, key) && len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}

// detectGoogleSorry recognizes the interstitial Google serves instead of a
// results page when it suspects automated traffic. Browser tabs report no
// status code, so this one relies on URL and body only.
func detectGoogleSorry(snap *render.Snapshot) (bool, string) {
	if strings.Contains(snap.URL, "/sorry/") {
		return true, "Google"
	}
	if bytes.Contains(snap.Body, []byte("unusual traffic from your computer network")) ||
		bytes.Contains(snap.Body, []byte(`id="captcha-form"`)) {
		return true, "Google"
	}
	return false, ""
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(snap *render.Snapshot) (bool, string) {
	if snap.StatusCode == http.StatusForbidden || snap.StatusCode == http.StatusServiceUnavailable {
		server := strings.ToLower(getHeader(snap.Headers, "Server"))
		if strings.Contains(server, "cloudflare") {
			return true, "Cloudflare"
		}

		if bytes.Contains(snap.Body, []byte("cf-browser-verification")) ||
			bytes.Contains(snap.Body, []byte("cf-turnstile")) ||
			bytes.Contains(snap.Body, []byte("Attention Required! | Cloudflare")) {
			return true, "Cloudflare"
		}
	}
	return false, ""
}

// detectAkamai looks for Akamai Bot Manager signatures.
func detectAkamai(snap *render.Snapshot) (bool, string) {
	if snap.StatusCode == http.StatusForbidden {
		server := strings.ToLower(getHeader(snap.Headers, "Server"))
		if strings.Contains(server, "akamai") {
			return true, "Akamai"
		}
		if bytes.Contains(snap.Body, []byte("Reference #")) && bytes.Contains(snap.Body, []byte("Access Denied")) {
			return true, "Akamai"
		}
	}
	return false, ""
}

// detectDataDome looks for DataDome challenge/block signatures.
func detectDataDome(snap *render.Snapshot) (bool, string) {
	if snap.StatusCode == http.StatusForbidden {
		if getHeader(snap.Headers, "X-DataDome") != "" || getHeader(snap.Headers, "X-DataDome-Response") != "" {
			return true, "DataDome"
		}
		if bytes.Contains(snap.Body, []byte("geo.captcha-delivery.com")) {
			return true, "DataDome"
		}
	}
	return false, ""
}

// detectPerimeterX looks for PerimeterX (HUMAN) signatures.
func detectPerimeterX(snap *render.Snapshot) (bool, string) {
	if snap.StatusCode == http.StatusForbidden {
		if getHeader(snap.Headers, "X-Px-Captcha") != "" {
			return true, "PerimeterX"
		}
		if bytes.Contains(snap.Body, []byte("client.perimeterx.net")) ||
			bytes.Contains(snap.Body, []byte("_pxBlock")) {
			return true, "PerimeterX"
		}
	}
	return false, ""
}
