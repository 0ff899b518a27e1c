package main

import "github.com/panic80/cb-sub000/cmd"

func main() {
	cmd.Execute()
}
