// Package tlsclient builds the HTTP client C1 polls the enrollment portal
// with. A monitor that polls a course at roughly 1 Hz for minutes at a time
// produces exactly the traffic shape portal-side bot detection flags, so the
// transport impersonates a real browser's TLS fingerprint and header
// ordering instead of using a bare net/http client. This package is adapted
// from the enrollment client's own browser-impersonation transport.
package tlsclient

import (
	"fmt"
	"math/rand"
	"net/http"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

// ProfileRotationMode determines how browser profiles are selected per
// client construction.
type ProfileRotationMode int

const (
	ProfileRotationOff ProfileRotationMode = iota
	ProfileRotationRandom
	ProfileRotationSequential
)

var (
	// DefaultProfiles is the pool of browser fingerprints rotated between.
	DefaultProfiles = []profiles.ClientProfile{
		profiles.Chrome_131,
		profiles.Chrome_133,
		profiles.Firefox_133,
		profiles.Firefox_135,
	}

	currentProfileIndex int
	profileMutex        sync.Mutex
)

// Options configures the transport.
type Options struct {
	ProfileRotationMode ProfileRotationMode
	CustomProfiles      []profiles.ClientProfile
	ConnectTimeout      time.Duration
	ReadTimeout         time.Duration
	// FollowRedirects must stay false for the enrollment portal: spec.md §4.1
	// treats a 302 as the primary session-expiry signal, so the caller needs
	// to see it rather than have it silently followed.
	FollowRedirects bool
}

// DefaultOptions matches spec.md §4.1's connect≈3s / read≈5-10s budget and
// the "never follow redirects" rule.
func DefaultOptions() *Options {
	return &Options{
		ProfileRotationMode: ProfileRotationRandom,
		CustomProfiles:      DefaultProfiles,
		ConnectTimeout:      3 * time.Second,
		ReadTimeout:         8 * time.Second,
		FollowRedirects:     false,
	}
}

func selectProfile(opts *Options) profiles.ClientProfile {
	pool := opts.CustomProfiles
	if len(pool) == 0 {
		pool = DefaultProfiles
	}
	switch opts.ProfileRotationMode {
	case ProfileRotationOff:
		return pool[0]
	case ProfileRotationSequential:
		profileMutex.Lock()
		defer profileMutex.Unlock()
		p := pool[currentProfileIndex%len(pool)]
		currentProfileIndex++
		return p
	default:
		return pool[rand.Intn(len(pool))]
	}
}

var profileUserAgents = map[string]string{
	"Chrome_133":  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Chrome_131":  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Firefox_135": "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Firefox_133": "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
}

// New builds an *http.Client with TLS fingerprinting, a pooled keep-alive
// connection, TLS verification disabled to tolerate the portal's
// historically self-signed certs (spec.md §4.1), and redirects disabled.
func New(opts *Options) (*http.Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	profile := selectProfile(opts)
	jar := tls_client.NewCookieJar()

	timeout := opts.ConnectTimeout + opts.ReadTimeout
	clientOpts := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(int(timeout.Seconds())),
		tls_client.WithClientProfile(profile),
		tls_client.WithCookieJar(jar),
		tls_client.WithRandomTLSExtensionOrder(),
		tls_client.WithInsecureSkipVerify(),
	}
	if !opts.FollowRedirects {
		clientOpts = append(clientOpts, tls_client.WithNotFollowRedirects())
	}

	tlsClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("tlsclient: failed to build client: %w", err)
	}

	transport := &impersonatingTransport{client: tlsClient, profile: profile}

	return &http.Client{
		Transport: transport,
		Jar:       &jarAdapter{jar: jar},
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !opts.FollowRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

type impersonatingTransport struct {
	client  tls_client.HttpClient
	profile profiles.ClientProfile
}

func (t *impersonatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	fReq, err := toFHTTPRequest(req, t.profile)
	if err != nil {
		return nil, fmt.Errorf("tlsclient: request conversion failed: %w", err)
	}
	fResp, err := t.client.Do(fReq)
	if err != nil {
		return nil, err
	}
	return toNetHTTPResponse(fResp)
}

func toFHTTPRequest(req *http.Request, profile profiles.ClientProfile) (*fhttp.Request, error) {
	fReq, err := fhttp.NewRequest(req.Method, req.URL.String(), req.Body)
	if err != nil {
		return nil, err
	}
	fReq.Header = make(fhttp.Header)
	for k, v := range req.Header {
		fReq.Header[k] = v
	}
	if ua := fReq.Header.Get("User-Agent"); ua == "" || ua == "Go-http-client/1.1" {
		name := profileName(profile)
		for key, mapped := range profileUserAgents {
			if strings.Contains(name, key) {
				fReq.Header.Set("User-Agent", mapped)
				break
			}
		}
	}
	fReq.Host = req.Host
	fReq.ContentLength = req.ContentLength
	return fReq, nil
}

func toNetHTTPResponse(fResp *fhttp.Response) (*http.Response, error) {
	resp := &http.Response{
		Status:        fResp.Status,
		StatusCode:    fResp.StatusCode,
		Proto:         fResp.Proto,
		ProtoMajor:    fResp.ProtoMajor,
		ProtoMinor:    fResp.ProtoMinor,
		Header:        make(http.Header),
		Body:          fResp.Body,
		ContentLength: fResp.ContentLength,
		Close:         fResp.Close,
	}
	for k, v := range fResp.Header {
		resp.Header[k] = v
	}
	if fResp.Request != nil {
		resp.Request = &http.Request{
			Method: fResp.Request.Method,
			URL:    fResp.Request.URL,
			Host:   fResp.Request.Host,
			Header: make(http.Header),
		}
		for k, v := range fResp.Request.Header {
			resp.Request.Header[k] = v
		}
	}
	return resp, nil
}

// jarAdapter bridges fhttp's cookie jar to the net/http.CookieJar interface.
type jarAdapter struct {
	jar fhttp.CookieJar
}

func (a *jarAdapter) SetCookies(u *neturl.URL, cookies []*http.Cookie) {
	fCookies := make([]*fhttp.Cookie, len(cookies))
	for i, c := range cookies {
		fCookies[i] = &fhttp.Cookie{
			Name: c.Name, Value: c.Value, Path: c.Path, Domain: c.Domain,
			Expires: c.Expires, RawExpires: c.RawExpires, MaxAge: c.MaxAge,
			Secure: c.Secure, HttpOnly: c.HttpOnly, SameSite: fhttp.SameSite(c.SameSite),
			Raw: c.Raw, Unparsed: c.Unparsed,
		}
	}
	a.jar.SetCookies(u, fCookies)
}

func (a *jarAdapter) Cookies(u *neturl.URL) []*http.Cookie {
	fCookies := a.jar.Cookies(u)
	cookies := make([]*http.Cookie, len(fCookies))
	for i, fc := range fCookies {
		cookies[i] = &http.Cookie{
			Name: fc.Name, Value: fc.Value, Path: fc.Path, Domain: fc.Domain,
			Expires: fc.Expires, RawExpires: fc.RawExpires, MaxAge: fc.MaxAge,
			Secure: fc.Secure, HttpOnly: fc.HttpOnly, SameSite: http.SameSite(fc.SameSite),
			Raw: fc.Raw, Unparsed: fc.Unparsed,
		}
	}
	return cookies
}

func profileName(p profiles.ClientProfile) string {
	for _, candidate := range []struct {
		name string
		p    profiles.ClientProfile
	}{
		{"Chrome_133", profiles.Chrome_133},
		{"Chrome_131", profiles.Chrome_131},
		{"Firefox_135", profiles.Firefox_135},
		{"Firefox_133", profiles.Firefox_133},
	} {
		if fmt.Sprintf("%v", p) == fmt.Sprintf("%v", candidate.p) {
			return candidate.name
		}
	}
	return fmt.Sprintf("%v", p)
}
