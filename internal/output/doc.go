// Package output provides the user-visible reporting sinks for ipwatch.
//
// The Output interface abstracts progress reporting so the same resolution
// code can print to a terminal or be captured for a tool response:
//
//   - StreamingOutput: writes coloured lines directly to an io.Writer
//   - BufferedOutput: collects lines in memory (used by the MCP server)
//   - NoOpOutput: discards everything (used by tests)
//
// Usage Example:
//
//	out := output.NewStreamingOutput(os.Stdout)
//	out.Header("Resolving external address")
//	out.Success("GetIP: Try 1: Good IP : 203.0.113.7")
//
// Colour follows github.com/fatih/color, which disables itself when stdout is
// not a terminal or NO_COLOR is set. Buffered output is never coloured.
//
// All implementations are thread-safe with mutex protection.
package output
