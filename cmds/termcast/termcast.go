// Copyright 2023-2026 the termcast Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// termcast runs a command (the shell, by default) on a local
// pseudo-terminal and broadcasts everything it prints to a termcast
// relay, where watchers can follow along. Keystrokes stay local; only
// output leaves the machine.
package main

import (
	"bytes"
	"flag"
	"log"
	"os"
	"time"

	"github.com/termcast/termcast/client"
	"github.com/termcast/termcast/config"
	"github.com/u-root/u-root/pkg/ulog"
)

var (
	bell    = flag.Bool("bell", false, "ring the local bell on watcher traffic from the relay")
	cfgFile = flag.String("c", config.DefaultPath(), "client configuration file")
	debug   = flag.Bool("d", false, "enable debug prints")
	dump    = flag.Bool("dump", false, "Dump copious output to a temp file at exit")
	host    = flag.String("host", "", "relay host")
	passwd  = flag.String("passwd", "", "relay password")
	port    = flag.Uint("p", 0, "relay port")
	timeout = flag.Uint("t", 0, "seconds to wait for the relay to accept a write")
	uname   = flag.String("u", "", "relay user name")

	v          = func(string, ...interface{}) {}
	dumpWriter *os.File
)

func flags() {
	flag.Parse()
	if *dump && *debug {
		log.Fatalf("You can only set either dump OR debug")
	}
	if *debug {
		v = log.Printf
		client.SetVerbose(log.Printf)
	}
	if *dump {
		var err error
		dumpWriter, err = os.CreateTemp("", "termcast")
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Logging to %s", dumpWriter.Name())
		ulog.Log = log.New(dumpWriter, "", log.Ltime|log.Lmicroseconds)
		v = ulog.Log.Printf
		client.SetVerbose(v)
	}
}

func usage() {
	var b bytes.Buffer
	flag.CommandLine.SetOutput(&b)
	flag.PrintDefaults()
	log.Fatalf("Usage: termcast [options] [command [args...]]:\n%v", b.String())
}

func main() {
	flags()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		log.Fatal(err)
	}
	// Flags win over the file and the environment.
	if len(*host) != 0 {
		cfg.Host = *host
	}
	if *port != 0 {
		if *port > 0xffff {
			usage()
		}
		cfg.Port = uint16(*port)
	}
	if len(*uname) != 0 {
		cfg.User = *uname
	}
	if len(*passwd) != 0 {
		cfg.Password = *passwd
	}
	if *bell {
		cfg.BellOnWatcher = true
	}
	if *timeout != 0 {
		cfg.Timeout = *timeout
	}

	c := client.Command(flag.Args()...)
	if err := c.SetOptions(
		client.WithHost(cfg.Host),
		client.WithPort(cfg.Port),
		client.WithUser(cfg.User),
		client.WithPassword(cfg.Password),
		client.WithBellOnWatcher(cfg.BellOnWatcher),
		client.WithTimeout(time.Duration(cfg.Timeout)*time.Second),
	); err != nil {
		log.Fatal(err)
	}

	v("broadcasting %q to %s:%d as %q", c.Args, cfg.Host, cfg.Port, cfg.User)
	if err := c.Run(); err != nil {
		log.Fatal(err)
	}
	v("broadcast done")
}
