// Command linkvm loads, links and runs compiled module units.
package main

import "os"

func main() {
	os.Exit(Execute())
}
