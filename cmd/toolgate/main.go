// Command toolgate runs the Tool Federation Gateway: it aggregates tools
// from a set of declared MCP upstream servers behind a single call/
// search/discover surface.
package main

import "github.com/toolgate/toolgate/cmd/toolgate/cmd"

func main() {
	cmd.Execute()
}
