package asset

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Remote resources are fetched with this client.
var httpClient = &http.Client{Timeout: 30 * time.Second}

// Resource wraps a streamable local file or a remote http(s) asset such as
// a mesh or its material library.
type Resource struct {
	io.ReadCloser
	url *url.URL
}

// Path returns the location of this resource.
func (r *Resource) Path() string {
	return r.url.String()
}

// IsRemote returns true if the resource is streamed over http/https.
func (r *Resource) IsRemote() bool {
	return r.url.Scheme != ""
}

// NewResource opens a resource. If relTo is not nil and pathToResource is a
// relative path without a scheme, it is resolved against the directory
// containing relTo. The caller must Close the returned resource.
func NewResource(pathToResource string, relTo *Resource) (*Resource, error) {
	loc, err := url.Parse(strings.Replace(pathToResource, `\`, `/`, -1))
	if err != nil {
		return nil, fmt.Errorf("resource: invalid path '%s': %s", pathToResource, err)
	}

	if loc.Scheme == "" && relTo != nil && !filepath.IsAbs(loc.Path) {
		loc, err = resolveRelative(loc.Path, relTo)
		if err != nil {
			return nil, err
		}
	}

	var reader io.ReadCloser
	switch loc.Scheme {
	case "":
		reader, err = os.Open(filepath.Clean(loc.Path))
		if err != nil {
			return nil, fmt.Errorf("resource: could not open '%s': %s", loc.Path, err)
		}
	case "http", "https":
		resp, err := httpClient.Get(loc.String())
		if err != nil {
			return nil, fmt.Errorf("resource: could not fetch '%s': %s", loc.String(), err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("resource: could not fetch '%s': status %d", loc.String(), resp.StatusCode)
		}
		reader = resp.Body
	default:
		return nil, fmt.Errorf("resource: unsupported scheme '%s'", loc.Scheme)
	}

	return &Resource{
		ReadCloser: reader,
		url:        loc,
	}, nil
}

// NewResourceFromStream wraps an in-memory reader. Relative resources
// opened against it are resolved against name.
func NewResourceFromStream(name string, source io.Reader) *Resource {
	loc, err := url.Parse(name)
	if err != nil {
		loc = &url.URL{Path: name}
	}
	return &Resource{
		ReadCloser: io.NopCloser(source),
		url:        loc,
	}
}

func resolveRelative(relPath string, relTo *Resource) (*url.URL, error) {
	if relTo.IsRemote() {
		loc := *relTo.url
		loc.Path = path.Join(path.Dir(relTo.url.Path), relPath)
		return &loc, nil
	}

	base, err := filepath.Abs(relTo.url.Path)
	if err != nil {
		return nil, fmt.Errorf("resource: could not detect abs path for %s: %s", relTo.url.Path, err)
	}
	return &url.URL{Path: filepath.Join(filepath.Dir(base), relPath)}, nil
}
