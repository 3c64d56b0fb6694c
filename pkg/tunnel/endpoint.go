package tunnel

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidEndpoint is returned for client URLs that are not
// http://localhost[:port][/path].
var ErrInvalidEndpoint = errors.New("tunnel: invalid endpoint")

// pathLen is the length of a generated endpoint path, without the slash.
const pathLen = 18

// Endpoint is the local websocket endpoint served by a Client.
type Endpoint struct {
	Port int
	Path string
}

// String returns the URL a Server should dial.
func (e Endpoint) String() string {
	return fmt.Sprintf("http://localhost:%d%s", e.Port, e.Path)
}

// Addr returns the HTTP listen address.
func (e Endpoint) Addr() string {
	return "localhost:" + strconv.Itoa(e.Port)
}

// ParseEndpoint parses a client URL. Only the http scheme and the localhost
// host are accepted; either may be omitted. The port defaults to 80. An empty
// path is replaced with RandomPath.
func ParseEndpoint(raw string) (Endpoint, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "" && u.Scheme != "http" {
		return Endpoint{}, fmt.Errorf("%w: scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if h := u.Hostname(); h != "" && h != "localhost" {
		return Endpoint{}, fmt.Errorf("%w: host %q", ErrInvalidEndpoint, h)
	}
	ep := Endpoint{Port: 80, Path: u.Path}
	if p := u.Port(); p != "" {
		ep.Port, err = strconv.Atoi(p)
		if err != nil || ep.Port <= 0 || ep.Port > 65535 {
			return Endpoint{}, fmt.Errorf("%w: port %q", ErrInvalidEndpoint, p)
		}
	}
	if ep.Path == "" || ep.Path == "/" {
		ep.Path = RandomPath()
	}
	return ep, nil
}

// RandomPath returns an unguessable endpoint path derived from a random
// UUID, such as "/3kHf0QwMSaCg6e1feA".
func RandomPath() string {
	id := uuid.New()
	s := base64.StdEncoding.EncodeToString(id[:])
	s = strings.NewReplacer("=", "", "/", "", "+", "").Replace(s)
	if len(s) > pathLen {
		s = s[len(s)-pathLen:]
	}
	return "/" + s
}

// WebSocketURL converts an http(s) URL into the matching ws(s) URL. ws and
// wss URLs are returned unchanged.
func WebSocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("tunnel: parse url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("tunnel: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("tunnel: missing host in %q", raw)
	}
	return u.String(), nil
}
