package stores

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// Open creates a BufferStore from a URI:
//
//	memory://
//	file:///var/lib/app/buffer.json
//	sqlite:///var/lib/app/buffer.db
//
// Relative paths are accepted as "file://relative/path" and "sqlite://relative/path".
func Open(uri string) (types.BufferStore, error) {
	if uri == "" || uri == "memory" || uri == "memory://" {
		return NewMemoryStore(), nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid store URI %q", uri)
	}

	path := u.Host + u.Path
	switch strings.ToLower(u.Scheme) {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		if path == "" {
			return nil, errors.Errorf("store URI %q has no path", uri)
		}
		return NewFileStore(path)
	case "sqlite", "sqlite3":
		if path == "" {
			return nil, errors.Errorf("store URI %q has no path", uri)
		}
		return NewSQLiteStore(path)
	default:
		return nil, errors.Errorf("unsupported store scheme %q", u.Scheme)
	}
}
