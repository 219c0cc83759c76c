package camera

import (
	"fmt"
	"net/url"
	"regexp"
)

// Default output geometry and JPEG quality for restreamed frames.
const (
	DefaultWidth   = 960
	DefaultHeight  = 540
	DefaultQuality = 75
)

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

var allowedSchemes = map[string]bool{
	"rtsp":  true,
	"rtsps": true,
	"http":  true,
	"https": true,
	"file":  true,
}

// Config describes one camera. It is treated as immutable once handed to a
// Registry; replacing a camera's settings means registering a new Config.
type Config struct {
	ID       string
	Name     string
	URI      string
	Username string
	Password string

	// Output overrides; zero means the process-wide default.
	Width   int
	Height  int
	Quality int
}

// ValidateID checks the camera identifier alone.
func ValidateID(id string) error {
	if !validID.MatchString(id) {
		return &Error{Code: CodeInvalidConfig, CameraID: id, Message: "camera id must be 1-64 characters of letters, digits, '.', '_' or '-'"}
	}
	return nil
}

// Validate reports a configuration error for a bad id or connection URI.
func (c Config) Validate() error {
	if err := ValidateID(c.ID); err != nil {
		return err
	}
	if c.URI == "" {
		return &Error{Code: CodeInvalidConfig, CameraID: c.ID, Message: "connection URI is empty"}
	}

	u, err := url.Parse(c.URI)
	if err != nil {
		return &Error{Code: CodeInvalidConfig, CameraID: c.ID, Message: "malformed connection URI", Cause: err}
	}
	if !allowedSchemes[u.Scheme] {
		return &Error{Code: CodeInvalidConfig, CameraID: c.ID, Message: fmt.Sprintf("unsupported URI scheme %q", u.Scheme)}
	}
	if u.Scheme != "file" && u.Host == "" {
		return &Error{Code: CodeInvalidConfig, CameraID: c.ID, Message: "connection URI has no host"}
	}
	if c.Quality < 0 || c.Quality > 100 {
		return &Error{Code: CodeInvalidConfig, CameraID: c.ID, Message: fmt.Sprintf("quality %d out of range 1-100", c.Quality)}
	}
	if c.Width < 0 || c.Height < 0 {
		return &Error{Code: CodeInvalidConfig, CameraID: c.ID, Message: "negative output size"}
	}
	return nil
}

// SourceURI returns the URI to dial, with Username/Password embedded unless
// the URI already carries user info.
func (c Config) SourceURI() string {
	u, err := url.Parse(c.URI)
	if err != nil || c.Username == "" || u.User != nil {
		return c.URI
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	} else {
		u.User = url.User(c.Username)
	}
	return u.String()
}

// Redacted returns the source URI with the password masked, for logs and API
// responses.
func (c Config) Redacted() string {
	u, err := url.Parse(c.SourceURI())
	if err != nil {
		return "<invalid uri>"
	}
	return u.Redacted()
}

// Host returns the host (without port) the camera is reached at.
func (c Config) Host() string {
	u, err := url.Parse(c.URI)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// DisplayName prefers Name and falls back to ID.
func (c Config) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
