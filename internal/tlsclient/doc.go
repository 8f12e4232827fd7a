// Package tlsclient provides browser-impersonating HTTP client construction
// for polling the enrollment portal without tripping TLS-fingerprint-based
// bot detection.
//
// Example:
//
//	client, err := tlsclient.New(tlsclient.DefaultOptions())
//	if err != nil {
//	    return err
//	}
package tlsclient
