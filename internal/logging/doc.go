// Package logging sets up structured slog output for convorag.
//
// CLI commands log warnings to stderr as text. With --debug, JSON logs at
// debug level also go to a rotating file under ~/.convorag/logs/. The MCP
// server logs to the file only, since stdout carries the protocol stream.
package logging
