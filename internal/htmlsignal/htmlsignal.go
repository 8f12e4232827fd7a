// Package htmlsignal is the defensive fallback half of session-expiry
// detection (spec.md's C16 addition): the enrollment portal's JSON endpoints
// normally signal an expired session with a 302 or a recognizable code/msg
// pair, but an occasional response comes back as the login page's raw HTML
// instead. This package is adapted from the enrollment client's own login-page
// form parser, repurposed from "extract fields to submit" to "recognize that
// we were handed a login page at all".
package htmlsignal

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"k8s.io/klog/v2"
)

// Signal is what the HTML fallback detector concluded about a response body.
type Signal int

const (
	// SignalUnknown means the body didn't match any recognized shape; the
	// caller should fall back to treating it as ordinary (non-error) content.
	SignalUnknown Signal = iota
	// SignalLoginPage means the body is the portal's login form, i.e. the
	// session has expired or was never established.
	SignalLoginPage
	// SignalErrorPage means the body is a generic portal error page (server
	// fault, maintenance banner) rather than a login redirect.
	SignalErrorPage
)

func (s Signal) String() string {
	switch s {
	case SignalLoginPage:
		return "login_page"
	case SignalErrorPage:
		return "error_page"
	default:
		return "unknown"
	}
}

// errorMarkers are substrings observed in the portal's generic error/maintenance
// page when it falls back to server-rendered HTML instead of JSON.
var errorMarkers = []string{"系统维护", "服务器繁忙", "出错了", "500", "502", "503"}

// Detect inspects a response body for the login-page or error-page shape.
// It never returns an error: a body it cannot parse as HTML at all is simply
// SignalUnknown, since the caller already has a JSON-decode failure to act on
// in that case.
func Detect(body io.Reader) Signal {
	raw, err := io.ReadAll(body)
	if err != nil {
		return SignalUnknown
	}
	return DetectBytes(raw)
}

// DetectBytes is Detect for an already-buffered body, useful when the caller
// needs to re-read the body afterward (io.Reader is consumed by Detect).
func DetectBytes(raw []byte) Signal {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return SignalUnknown
	}

	if IsLoginForm(dom) {
		return SignalLoginPage
	}

	text := dom.Text()
	for _, marker := range errorMarkers {
		if strings.Contains(text, marker) {
			klog.V(2).Infof("htmlsignal: matched error marker %q", marker)
			return SignalErrorPage
		}
	}

	return SignalUnknown
}

// IsLoginForm reports whether the parsed document is the portal's login page,
// grounded on the same form#loginform + hidden-field selectors the login flow
// itself submits against: the form must also carry a hidden verification-token
// input or a captcha element (img#captchaImg or a verifycode input). A bare
// form#loginform with neither is not treated as the login page.
func IsLoginForm(dom *goquery.Document) bool {
	form := dom.Find("form#loginform")
	if form.Length() == 0 {
		return false
	}
	hasToken := form.Find("input[name='__RequestVerificationToken']").Length() > 0
	hasCaptcha := form.Find("img#captchaImg").Length() > 0 || form.Find("input[name='verifycode']").Length() > 0
	return hasToken || hasCaptcha
}
