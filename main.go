package main

import "smsrouter/cmd"

func main() {
	cmd.Execute()
}
