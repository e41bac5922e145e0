package transports

import (
	"io"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

func closeTransport(t types.Transport) error {
	if c, ok := t.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Unwrap follows Unwrap methods of wrapping transports and returns the
// innermost transport.
func Unwrap(t types.Transport) types.Transport {
	for {
		w, ok := t.(interface{ Unwrap() types.Transport })
		if !ok {
			return t
		}
		t = w.Unwrap()
	}
}
