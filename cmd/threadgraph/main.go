// Command threadgraph runs a tool-using chat agent over persisted threads.
package main

func main() {
	Execute()
}
