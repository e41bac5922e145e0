package types

import (
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const fallbackIDPrefix = "omnilog"

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// newRandomUUID is swapped in tests to exercise the fallback scheme.
var newRandomUUID = uuid.NewRandom

// NewID returns a collision-resistant identifier for a log entry.
// When the secure generator fails it falls back to
// "omnilog-<unix millis base36>-<8 random base36 chars>".
func NewID() string {
	id, err := newRandomUUID()
	if err == nil {
		return id.String()
	}
	return fallbackID(time.Now())
}

func fallbackID(now time.Time) string {
	suffix := make([]byte, 8)
	for i := range suffix {
		suffix[i] = base36[rand.Intn(len(base36))]
	}
	return fallbackIDPrefix + "-" + strconv.FormatInt(now.UnixMilli(), 36) + "-" + string(suffix)
}
