package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/garderie/apps/api/echo"
	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/attendance"
	"github.com/trezcool/garderie/core/daycare"
	"github.com/trezcool/garderie/services/logger"
	"github.com/trezcool/garderie/storage/database/inmem"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %+v", err)
	}

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	db, err := openDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	daycareSvc := daycare.NewService(inmemdb.NewDaycareRepository(db), logger, time.Local)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// an empty store gets demo data
	if _, err = daycareSvc.Settings(); errors.Cause(err) == daycare.ErrSettingsMissing {
		guardian, err := seed(daycareSvc)
		if err != nil {
			logger.Fatal(fmt.Sprintf("seeding demo data: %v", err), err)
		}
		token, err := echoapi.GenerateToken(conf, guardian)
		if err != nil {
			logger.Fatal(fmt.Sprintf("generating dev token: %v", err), err)
		}
		logger.Info("demo guardian ready", map[string]interface{}{"username": guardian.Username, "token": token})
	} else if err != nil {
		logger.Fatal(fmt.Sprintf("loading settings: %v", err), err)
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		DaycareSvc: daycareSvc,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func openDB(conf *core.Config) (*inmemdb.DB, error) {
	if conf.DataFile == "" {
		return inmemdb.Open()
	}
	return inmemdb.OpenFile(conf.DataFile)
}

// seed creates a demo school with one guardian of two children, and a pair of daily codes.
func seed(svc *daycare.Service) (daycare.Guardian, error) {
	if _, err := svc.UpdateSettings(attendance.SchoolSettings{
		SchoolName:      "Les Petits Lions",
		CenterLatitude:  -4.3217,
		CenterLongitude: 15.3125,
		RadiusMeters:    150,
		GeofenceEnabled: true,
	}); err != nil {
		return daycare.Guardian{}, errors.Wrap(err, "saving settings")
	}

	g, err := svc.CreateGuardian(daycare.Guardian{
		Name:     "Marie Kabila",
		Username: "marie",
		Email:    "marie@example.cd",
		IsActive: true,
	})
	if err != nil {
		return daycare.Guardian{}, errors.Wrap(err, "creating guardian")
	}
	for _, name := range []string{"Amani", "Bijou"} {
		if _, err = svc.CreateChild(daycare.NewChild{Name: name, GuardianIDs: []string{g.ID}}); err != nil {
			return daycare.Guardian{}, errors.Wrap(err, "creating child")
		}
	}

	codes := []daycare.NewCode{
		{Value: "LPL-IN", Action: attendance.CheckIn, TTL: 24 * time.Hour},
		{Value: "LPL-OUT", Action: attendance.CheckOut, TTL: 24 * time.Hour},
	}
	for _, nc := range codes {
		if _, err = svc.IssueCode(nc); err != nil {
			return daycare.Guardian{}, errors.Wrap(err, "issuing code")
		}
	}
	return g, nil
}
