// Command wspolicy normalizes, diffs and checks WS-Policy expressions.
package main

import "github.com/policyforge/wspolicy/internal/cli"

func main() {
	cli.Execute()
}
