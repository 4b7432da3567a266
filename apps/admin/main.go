package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/daycare"
	"github.com/trezcool/garderie/services/logger"
	"github.com/trezcool/garderie/storage/database/inmem"
)

func main() {
	defer os.Exit(0)

	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %+v", err)
	}
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	// the admin CLI edits the store the API serves
	if conf.DataFile == "" {
		logger.Fatal("dataFile is not configured")
	}
	db, err := inmemdb.OpenFile(conf.DataFile)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		conf: conf,
		svc:  daycare.NewService(inmemdb.NewDaycareRepository(db), logger, time.Local),
		out:  os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
