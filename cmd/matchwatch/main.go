package main

import (
	"os"

	"matchroom_server/logging"
)

func main() {
	logging.Init(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
