package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rjboer/GoEphys/internal/mdns"
)

func main() {
	timeout := flag.Int("timeout", 5, "Timeout in seconds")
	flag.Parse()

	fmt.Println("===============================================================")
	fmt.Println(" mDNS / DNS-SD Discovery Test")
	fmt.Println("===============================================================")
	fmt.Printf(" Service : %s.local\n", mdns.Service)
	fmt.Printf(" Timeout : %d seconds\n", *timeout)
	fmt.Println("---------------------------------------------------------------")

	start := time.Now()
	nodes, err := mdns.Discover(context.Background(), time.Duration(*timeout)*time.Second)
	duration := time.Since(start)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Discovery error: %v\n", err)
		os.Exit(1)
	}

	if len(nodes) == 0 {
		fmt.Printf("No acquisition nodes found (%s)\n", duration.Truncate(time.Millisecond))
		return
	}

	fmt.Printf("Discovered %d node(s) in %s\n",
		len(nodes), duration.Truncate(time.Millisecond))
	fmt.Println("===============================================================")

	for i, n := range nodes {
		fmt.Printf(" Node #%d\n", i+1)
		fmt.Println("---------------------------------------------------------------")
		fmt.Printf(" Instance : %s\n", n.Instance)
		fmt.Printf(" Hostname : %s\n", n.Hostname)
		fmt.Printf(" Port     : %d\n", n.Port)

		fmt.Println(" Addresses:")
		if len(n.Addresses) == 0 {
			fmt.Println("   <none>")
		} else {
			for _, ip := range n.Addresses {
				fmt.Printf("   - %s\n", ip.String())
			}
		}

		fmt.Println(" TXT Records:")
		if len(n.TXT) == 0 {
			fmt.Println("   <none>")
		} else {
			for _, txt := range n.TXT {
				fmt.Printf("   - %s\n", txt)
			}
		}

		// Derived connection hints
		fmt.Println(" Connection hints:")
		for _, ip := range n.Addresses {
			if ip.To4() != nil {
				fmt.Printf("   - http://%s:%d/api/snapshot\n", ip.String(), n.Port)
			} else {
				fmt.Printf("   - http://[%s]:%d/api/snapshot\n", ip.String(), n.Port)
			}
		}

		fmt.Println("===============================================================")
	}
}
