// Command pulsar builds and validates the project dependency graph of a
// monorepo workspace.
package main

import "github.com/papapumpkin/pulsar/cmd"

func main() {
	cmd.Execute()
}
