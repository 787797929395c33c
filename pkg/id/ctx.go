package id

import "context"

type contextKey struct{}

// FromContext returns the injected generator, or the process default.
func FromContext(ctx context.Context) Gen {
	if gen, ok := ctx.Value(contextKey{}).(Gen); ok {
		return gen
	}
	return Default()
}

func InjectContext(ctx context.Context, gen Gen) context.Context {
	return context.WithValue(ctx, contextKey{}, gen)
}
