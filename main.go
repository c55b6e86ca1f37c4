// imgopt is an image transforming cache & proxy backed by allow-listed
// origins and a filesystem content store.
package main

import "github.com/holaplex/imgopt/cmd"

func main() {
	cmd.Main()
}
