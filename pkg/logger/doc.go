// Package logger builds the application's slog logger: JSON lines in
// production, human readable tint output everywhere else.
package logger
