package main

import (
	"context"

	"farmfleet/cmd"
)

func main() {
	cmd.Execute(context.Background())
}
