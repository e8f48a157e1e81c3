// Command policyctl validates, compiles, and exercises policy documents
// against the decision engine from the command line.
package main

import "github.com/policyforge/decisionengine/cmd/policyctl/cmd"

func main() {
	cmd.Execute()
}
