package main

import "github.com/vitovidale/yapper-shorts-service/cmd"

func main() {
	cmd.Execute()
}
