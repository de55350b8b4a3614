package main

import "github.com/Ledger-Gate/ledgergate/cmd/ledgergate/cmd"

func main() {
	cmd.Execute()
}
