// Command vitrina drives the marketplace session from the terminal and
// serves the front end.
package main

import "github.com/vitrina-app/vitrina/cmd/vitrina/cmd"

func main() {
	cmd.Execute()
}
