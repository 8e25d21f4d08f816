package main

import (
	"fmt"
	"log"
	"os"

	"signalbacktest/cmd"
)

func main() {
	fmt.Println(os.Getenv("commit_hash"))
	apiHandler, cfg, err := cmd.InitializeDependencies()
	if err != nil {
		log.Fatal(err)
	}
	defer cmd.CloseDependencies(apiHandler)

	err = apiHandler.StartApi(cfg.Server.Port)
	if err != nil {
		log.Fatal(err)
	}
}
