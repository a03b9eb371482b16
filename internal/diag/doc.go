// Package diag runs network diagnostics against router agents: a streaming
// ping consumer that decodes newline-delimited JSON probe events into
// display lines, a buffered traceroute call, DNS checks, and a cached
// router directory.
package diag
