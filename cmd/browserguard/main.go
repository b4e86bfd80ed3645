package main

import "github.com/bryanchriswhite/BrowserGuard/cmd/browserguard/commands"

func main() {
	commands.Execute()
}
