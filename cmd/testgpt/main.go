// Command testgpt is the thinnest possible CLI front end over the
// core pipeline (§4.13).
package main

import "github.com/testgpt-run/testgpt/internal/cmd"

func main() {
	cmd.Execute()
}
