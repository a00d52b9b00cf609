package core

import "context"

// OnModuleInit is called once the routes are registered.
type OnModuleInit interface {
	OnModuleInit(ctx context.Context) error
}

// OnApplicationBootstrap is called after every OnModuleInit hook.
type OnApplicationBootstrap interface {
	OnApplicationBootstrap(ctx context.Context) error
}

// OnModuleDestroy is the first hook of a shutdown.
type OnModuleDestroy interface {
	OnModuleDestroy(ctx context.Context) error
}

// BeforeApplicationShutdown is called before the server stops. signal is
// empty unless the shutdown was triggered by one.
type BeforeApplicationShutdown interface {
	BeforeApplicationShutdown(ctx context.Context, signal string) error
}

// OnApplicationShutdown is called once the server stopped.
type OnApplicationShutdown interface {
	OnApplicationShutdown(ctx context.Context, signal string) error
}

func callInit(ctx context.Context, insts []any) error {
	for _, inst := range insts {
		if h, ok := inst.(OnModuleInit); ok {
			if err := h.OnModuleInit(ctx); err != nil {
				return err
			}
		}
	}
	for _, inst := range insts {
		if h, ok := inst.(OnApplicationBootstrap); ok {
			if err := h.OnApplicationBootstrap(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// reversed returns insts from the root module down to its imports.
func reversed(insts []any) []any {
	out := make([]any, len(insts))
	for i, inst := range insts {
		out[len(insts)-1-i] = inst
	}
	return out
}
