package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/turnon/wattwise/server"
)

func main() {
	fmt.Printf("pid: %d\n", os.Getpid())

	serverCfgFile := flag.String("s", "", "server config")
	flag.Parse()

	if *serverCfgFile == "" {
		flag.Usage()
		os.Exit(2)
	}
	server.Run(*serverCfgFile)
}
