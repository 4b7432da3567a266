package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/attendance"
	"github.com/trezcool/garderie/services/attendance"
	"github.com/trezcool/garderie/services/logger"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %+v", err)
	}
	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "SCAN : ", log.LstdFlags|log.Lmicroseconds), conf)

	cli := commandLine{
		conf:   conf,
		logger: logger,
		in:     os.Stdin,
		out:    os.Stdout,
		newClient: func(conf *core.Config) attendance.Client {
			return attendancesvc.NewClient(conf, logger)
		},
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
