package main

import "github.com/Kain-Deterick/VK-Internship/cmd"

func main() {
	cmd.Execute()
}
