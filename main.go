package main

import "subject-eval-scraper/cmd"

func main() {
	cmd.Execute()
}
