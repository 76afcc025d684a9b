/*
Package observability turns robot command events into metrics and logs.

Both Metrics and LoggingHooks produce domain.LifecycleHooks, so they can be
combined with domain.MergeHooks and passed to a session:

	m := observability.NewMetrics()
	hooks := domain.MergeHooks(m.Hooks(), observability.LoggingHooks(logger))
	s := runtime.NewSession(hw, runtime.WithLifecycleHooks(hooks))

Metrics keeps its own prometheus registry. Serve it with Handler.
*/
package observability
