package main

import (
	"github.com/star4ce/star4ce-backend/cmd"
)

func main() {
	cmd.Execute()
}
