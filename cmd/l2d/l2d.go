package main

import "github.com/appliedgeo/l2d/cmd/l2d/internal"

func main() {
	internal.Execute()
}
