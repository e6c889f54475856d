// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ManuGH/hlsgate/internal/platform/httpx"
)

var probePaths = map[string]string{
	"ready": "/readyz",
	"live":  "/healthz",
}

// runHealthcheckCLI exits 0 when the probe answers 200. Container images
// without curl use it for HEALTHCHECK.
func runHealthcheckCLI(args []string) int {
	return healthcheck(args, os.Stdout, os.Stderr)
}

func healthcheck(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("healthcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	mode := fs.String("mode", "ready", "probe to query: ready or live")
	addr := fs.String("addr", "localhost:8000", "gateway host:port")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	path, ok := probePaths[*mode]
	if !ok {
		fmt.Fprintf(stderr, "unknown -mode %q (want ready or live)\n", *mode)
		return 2
	}

	resp, err := httpx.NewClient(*timeout).Get("http://" + *addr + path)
	if err != nil {
		fmt.Fprintf(stderr, "%s probe unreachable: %v\n", *mode, err)
		return 1
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(stderr, "%s probe returned %s\n", *mode, resp.Status)
		return 1
	}
	fmt.Fprintf(stdout, "%s probe ok\n", *mode)
	return 0
}
