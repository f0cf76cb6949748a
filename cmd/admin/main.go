package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/fhirkeeper/internal/admincli"
)

func main() {

	addr := flag.String("a", "127.0.0.1:50051", "admin endpoint address")
	timeout := flag.Duration("t", 30*time.Second, "request timeout")
	flag.Parse()

	client, conn, err := admincli.Dial(*addr)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := admincli.Run(ctx, client, flag.Args(), os.Stdout); err != nil {
		log.Printf("%v", err)
		cancel()
		os.Exit(1)
	}

}
