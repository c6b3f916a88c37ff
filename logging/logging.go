// Package logging defines the small logger interface Kataribe runtimes,
// middleware, and collaborator packages (presence, pool) are configured
// with, plus a zap-backed default — zap already arrives transitively
// through etcd's own dependency graph, so it costs nothing extra to
// promote to a first-class logging dependency.
package logging

// Logger is the configuration-surface logging interface from the
// runtime options: Debug/Info/Warn/Error, each accepting a message and
// structured key-value pairs in the style of zap's SugaredLogger.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}
