package main

import (
	"log"

	"github.com/clubdesk/ticket-service/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
