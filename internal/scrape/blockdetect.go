package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot wall detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
	BlockWAF        BlockType = "waf"
)

var captchaMarkers = []string{"g-recaptcha", "h-captcha", "hcaptcha", "px-captcha", "captcha-delivery"}

// DetectBlock inspects a fetched response for anti-bot protection or a
// client-rendered shell with no server-side content.
func DetectBlock(status int, header http.Header, body []byte) (bool, BlockType) {
	if status == http.StatusForbidden || status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests {
		if header.Get("Cf-Ray") != "" || strings.EqualFold(header.Get("Server"), "cloudflare") {
			return true, BlockCloudflare
		}
		if strings.Contains(strings.ToLower(header.Get("Server")), "akamai") || header.Get("X-Sucuri-Id") != "" {
			return true, BlockWAF
		}
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "checking your browser") ||
		(strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge-platform")) {
		return true, BlockCloudflare
	}
	for _, m := range captchaMarkers {
		if strings.Contains(lower, m) {
			return true, BlockCaptcha
		}
	}

	if len(body) < 4096 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "enable javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `http-equiv="refresh"`) {
			return true, BlockJSShell
		}
		if (strings.Contains(lower, `id="root"`) || strings.Contains(lower, `id="__next"`) || strings.Contains(lower, `id="app"`)) &&
			!strings.Contains(lower, "<p") {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
