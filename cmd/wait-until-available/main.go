package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"
)

// Polls the health check until the service and its database answer.
func main() {
	url := flag.String("url", "http://localhost:8080/api/healthchecker", "the health check to poll")
	interval := flag.Duration("interval", 5*time.Second, "the pause between two attempts")
	flag.Parse()

	var totalWaitTime time.Duration
	for {
		res, err := http.Get(*url)
		if err == nil {
			res.Body.Close()
			if res.StatusCode == http.StatusOK {
				fmt.Println(res.Status)
				break
			}
			fmt.Println(res.Status)
		} else {
			fmt.Println(err)
		}
		totalWaitTime += *interval
		fmt.Printf("Waiting %s\n", totalWaitTime)
		time.Sleep(*interval)
	}
}
