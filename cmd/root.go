package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "questor"}

	root.AddCommand(serveCMD(), askCMD(), indexCMD(), migrateCMD())
	_ = root.Execute()
}
