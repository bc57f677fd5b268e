package core

import "context"

type contextKey string

const ctxKeySource contextKey = "import_source"

// ContextWithSource records where an import came from ("cli", or the
// client address for HTTP uploads). It is stored in the imports history.
func ContextWithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, ctxKeySource, source)
}

// SourceFromContext extracts the import source from context.
func SourceFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeySource).(string); ok {
		return v
	}
	return ""
}
