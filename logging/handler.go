package logging

import (
	"context"
	"log/slog"
)

// componentKey is the attribute that names the interception path a
// record came from (dispatch, shaderext, device, encode, shim).
const componentKey = "component"

// componentHandler filters records against a Spec before delegating.
// The component is picked up from WithAttrs, so a logger derived with
// slog.String("component", "encode") is filtered at that component's
// level.
type componentHandler struct {
	inner     slog.Handler
	spec      *Spec
	component string
}

// NewHandler wraps inner with per-component level filtering.
func NewHandler(inner slog.Handler, spec *Spec) slog.Handler {
	return &componentHandler{inner: inner, spec: spec}
}

func (h *componentHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.spec.LevelFor(h.component).ToSlog()
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Enabled(ctx, r.Level) {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &componentHandler{
		inner:     h.inner.WithAttrs(attrs),
		spec:      h.spec,
		component: h.component,
	}
	for _, attr := range attrs {
		if attr.Key == componentKey {
			next.component = attr.Value.String()
			break
		}
	}
	return next
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	return &componentHandler{
		inner:     h.inner.WithGroup(name),
		spec:      h.spec,
		component: h.component,
	}
}
