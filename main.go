package main

import "github.com/calebsnider/deckhand/internal/cmd"

func main() {
	cmd.Execute()
}
