//go:build wasip1

// Command hello is a sample main.wasm. Build it with `mage guest`.
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("hello from main.wasm")
	for i, arg := range os.Args {
		fmt.Printf("arg[%d] = %s\n", i, arg)
	}
	if name := os.Getenv("NAME"); name != "" {
		fmt.Printf("NAME = %s\n", name)
	}
}
