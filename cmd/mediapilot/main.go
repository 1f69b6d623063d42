package main

import "mediapilot/cmd/mediapilot/cmd"

func main() {
	cmd.Execute()
}
