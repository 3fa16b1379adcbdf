package main

import "github.com/redactyl/livegrab/cmd/livegrab"

func main() { livegrab.Execute() }
