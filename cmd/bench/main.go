package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ryandielhenn/r2rmesh/pkg/node"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "sending peer API address")
	recvAddr := flag.String("recv", "", "receiving peer API address (optional)")
	peer := flag.String("peer", "", "recipient peer name")
	n := flag.Int("n", 5000, "messages")
	conc := flag.Int("c", 32, "concurrency")
	valSize := flag.Int("val", 128, "content size bytes")
	ack := flag.Bool("ack", false, "request acknowledgments")
	flag.Parse()

	if *peer == "" {
		fmt.Println("-peer is required")
		return
	}
	sendURL := "http://" + node.NormalizeHostPort(*addr, "8080") + "/send/" + *peer + "?type=BENCH"
	if *ack {
		sendURL += "&ack=1"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	wg := sync.WaitGroup{}
	start := time.Now()
	ch := make(chan int, *conc)
	var failed atomic.Int64

	for i := 0; i < *n; i++ {
		wg.Add(1)
		ch <- 1
		go func(i int) {
			defer wg.Done()
			payload := bytes.Repeat([]byte{byte(rand.Intn(255))}, *valSize)
			resp, err := client.Post(sendURL, "application/octet-stream", bytes.NewReader(payload))
			if err != nil {
				failed.Add(1)
			} else {
				if resp.StatusCode != http.StatusAccepted {
					failed.Add(1)
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
			<-ch
		}(i)
	}
	wg.Wait()
	dur := time.Since(start)
	fmt.Printf("Queued %d sends in %s (%.2f ops/s), %d failed\n", *n, dur, float64(*n)/dur.Seconds(), failed.Load())

	if *recvAddr == "" {
		return
	}
	recvURL := "http://" + node.NormalizeHostPort(*recvAddr, "8080") + "/recv?wait=1s"
	got := 0
	for got < *n-int(failed.Load()) {
		resp, err := client.Get(recvURL)
		if err != nil {
			fmt.Println("recv:", err)
			break
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusNoContent {
			break
		}
		got++
	}
	dur = time.Since(start)
	fmt.Printf("Received %d messages in %s (%.2f msg/s)\n", got, dur, float64(got)/dur.Seconds())
}
