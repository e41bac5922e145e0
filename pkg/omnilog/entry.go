package omnilog

import (
	"context"
	"time"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// now is replaced in tests.
var now = time.Now

// newEntry builds the entry for one log call. Optional fields come from md,
// copied so later caller mutation is not observed; env falls back to
// defaultEnv and the correlation id to the one carried by ctx.
func newEntry(ctx context.Context, name string, level types.Level, msg string, md types.Metadata, defaultEnv string) types.LogEntry {
	md = types.CopyMetadata(md)

	entry := types.LogEntry{
		ID:            types.NewID(),
		Timestamp:     now().UTC().Format(types.TimestampFormat),
		Level:         level,
		Message:       msg,
		LoggerName:    name,
		Tags:          md.Tags,
		Context:       md.Context,
		Meta:          md.Meta,
		Error:         md.Error,
		Env:           md.Env,
		CorrelationID: md.CorrelationID,
	}

	if entry.Env == "" {
		entry.Env = defaultEnv
	}
	if entry.CorrelationID == "" {
		if id, ok := CorrelationIDFromContext(ctx); ok {
			entry.CorrelationID = id
		}
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		merged := make(map[string]interface{}, len(fields)+len(entry.Context))
		for k, v := range fields {
			merged[k] = v
		}
		for k, v := range entry.Context {
			merged[k] = v
		}
		entry.Context = merged
	}

	return entry
}

// mergeMetadata folds several Metadata values into one. Scalars from later
// values win, tags are concatenated and maps are merged key by key. A field
// stays absent unless at least one value sets it.
func mergeMetadata(mds []types.Metadata) types.Metadata {
	switch len(mds) {
	case 0:
		return types.Metadata{}
	case 1:
		return mds[0]
	}

	var out types.Metadata
	for _, md := range mds {
		if md.Tags != nil {
			if out.Tags == nil {
				out.Tags = make([]string, 0, len(md.Tags))
			}
			out.Tags = append(out.Tags, md.Tags...)
		}
		out.Context = mergeFields(out.Context, md.Context)
		out.Meta = mergeFields(out.Meta, md.Meta)
		if md.Error != nil {
			out.Error = md.Error
		}
		if md.Env != "" {
			out.Env = md.Env
		}
		if md.CorrelationID != "" {
			out.CorrelationID = md.CorrelationID
		}
	}
	return out
}

func mergeFields(dst, src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return dst
	}
	if dst == nil {
		dst = make(map[string]interface{}, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
