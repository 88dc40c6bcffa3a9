package main

import "ticketstar/cmd"

func main() {
	cmd.Execute()
}
