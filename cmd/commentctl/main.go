// Command commentctl is the moderation console for blog comments.
package main

import "inkwell/internal/cli"

func main() {
	cli.Execute()
}
