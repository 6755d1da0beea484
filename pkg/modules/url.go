package modules

import (
	"net/url"
	"strings"
)

// ResolveURL resolves a module request against the URL of the requesting
// unit. Requests with a scheme stand alone; anything else is a reference
// relative to referrer. An unparsable request is returned unchanged.
func ResolveURL(request, referrer string) string {
	if referrer == "" {
		return request
	}
	req, err := url.Parse(request)
	if err != nil || req.IsAbs() {
		return request
	}
	base, err := url.Parse(referrer)
	if err != nil {
		return request
	}
	return base.ResolveReference(req).String()
}

// FragmentURL names the synthetic module that exposes one property of a
// native module.
func FragmentURL(moduleURL, name string) string {
	return moduleURL + "#" + name
}

// SplitFragment is the inverse of FragmentURL.
func SplitFragment(u string) (moduleURL, name string, ok bool) {
	i := strings.LastIndexByte(u, '#')
	if i < 0 {
		return u, "", false
	}
	return u[:i], u[i+1:], true
}
