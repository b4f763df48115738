// This program performs administrative tasks for a gossipchain node.
package main

import (
	"github.com/brendisurfs/gossipchain/app/tooling/admin/cmd"
)

func main() {
	cmd.Execute()
}
