package main

import "github.com/efactura-ao/agt-bridge/internal/cli"

func main() {
	cli.Execute()
}
