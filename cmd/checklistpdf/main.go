package main

import "github.com/wudi/pdfoverlay/cmd/checklistpdf/cmd"

func main() {
	cmd.Execute()
}
