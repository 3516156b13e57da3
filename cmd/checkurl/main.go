// checkurl runs a URL through the delivery pipeline's SSRF validation and
// prints the verdict. Useful when debugging why a seller's stored file URL
// is being skipped.
//
//	go run ./cmd/checkurl -url https://proj.supabase.co/f.pdf -allow '*.supabase.co'
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/stitchfolk/pattern-delivery/internal/safefetch"
)

func main() {
	var (
		rawURL    = flag.String("url", "", "URL to validate")
		allowList = flag.String("allow", "", "comma-separated allow-list (exact hosts or *.wildcards)")
	)
	flag.Parse()

	if *rawURL == "" {
		fmt.Fprintln(os.Stderr, "usage: checkurl -url <url> [-allow '*.example.com,cdn.example.org']")
		os.Exit(2)
	}

	var allowed []string
	for _, entry := range strings.Split(*allowList, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			allowed = append(allowed, entry)
		}
	}

	err := safefetch.Validate(*rawURL, allowed)
	if err == nil {
		fmt.Printf("OK: %s would be fetched\n", *rawURL)
		return
	}

	var verr *safefetch.ValidationError
	if errors.As(err, &verr) {
		fmt.Printf("REJECTED: %s (reason: %s, host: %s)\n", *rawURL, verr.Reason, verr.Host)
	} else {
		fmt.Printf("REJECTED: %s (%v)\n", *rawURL, err)
	}
	os.Exit(1)
}
