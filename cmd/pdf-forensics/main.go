// Package main provides the pdf-forensics command.
//
// Usage:
//
//	pdf-forensics serve
//	pdf-forensics scan <file>...
//	pdf-forensics batch [dir] --markdown summary.md
//	pdf-forensics mcp
//
// See --help for all available options.
package main

func main() {
	Execute()
}
