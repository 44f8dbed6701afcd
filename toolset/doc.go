// Package toolset ships ready-made tools for interactive agents: running
// shell commands, reading files, and finding files by glob pattern. Each
// constructor returns a tool.Tool wired with an approval prompt that shows
// the human exactly what the model wants to touch.
package toolset
