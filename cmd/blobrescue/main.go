package main

import "github.com/dbsmedya/blobrescue/cmd/blobrescue/cmd"

func main() {
	cmd.Execute()
}
