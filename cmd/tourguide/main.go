// tourguide 博物馆语音导览
//
//	tourguide serve    API 服务
//	tourguide guide    展台导览终端
//	tourguide voices   音色列表
package main

import (
	"fmt"
	"os"

	"github.com/ovenzeze/hugo-tour-guide/cmd/tourguide/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
