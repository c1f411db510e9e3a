package main

import "github.com/nextlevelbuilder/kakak/cmd"

func main() {
	cmd.Execute()
}
