package client

import "net/http"

// KeyHeaderTransport is an http.RoundTripper that sets a static header on
// every request, used for API-key style authentication.
type KeyHeaderTransport struct {
	Header string
	Key    string

	// Base is the RoundTripper used to make the actual HTTP requests.
	// If nil, http.DefaultTransport is used.
	Base http.RoundTripper
}

func (t *KeyHeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	req2 := cloneRequest(req)
	req2.Header.Set(t.Header, t.Key)

	return base.RoundTrip(req2)
}

// StaticHeadersTransport sets a fixed set of headers on every request, such
// as the Notion-Version header required by the Notion API.
type StaticHeadersTransport struct {
	Headers map[string]string
	Base    http.RoundTripper
}

func (t *StaticHeadersTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	req2 := cloneRequest(req)
	for k, v := range t.Headers {
		req2.Header.Set(k, v)
	}

	return base.RoundTrip(req2)
}

// cloneRequest returns a clone of the provided *http.Request. The clone is a
// shallow copy of the struct with a deep copy of the Header map; RoundTrippers
// must not modify the original request.
func cloneRequest(r *http.Request) *http.Request {
	r2 := new(http.Request)
	*r2 = *r
	r2.Header = make(http.Header, len(r.Header))
	for k, s := range r.Header {
		r2.Header[k] = append([]string(nil), s...)
	}
	return r2
}
