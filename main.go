// Command harvester collects job postings from ATS APIs and listing pages,
// classifies them, and loads accepted postings into the analytics warehouse.
package main

import "github.com/pegavagas/harvester/cmd"

func main() {
	cmd.Execute()
}
