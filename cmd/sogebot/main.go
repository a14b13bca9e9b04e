// Package main is the entry point for the sogeBot module host.
package main

func main() {
	Execute()
}
