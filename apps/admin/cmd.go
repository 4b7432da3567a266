package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/attendance"
	"github.com/trezcool/garderie/core/daycare"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf *core.Config
	svc  *daycare.Service
	out  io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  settings -name NAME -lat LAT -lon LON -radius METERS [-geofence=false] - configure the school")
	fmt.Fprintln(cli.out, "  addguardian -name NAME -username USERNAME [-email EMAIL]              - add a guardian and print their token")
	fmt.Fprintln(cli.out, "  addchild -name NAME -guardians ID[,ID]                                - add a child")
	fmt.Fprintln(cli.out, "  issuecode -code CODE -action CheckIn|CheckOut [-ttl DURATION]         - issue a QR code")
	fmt.Fprintln(cli.out, "  token -guardian ID                                                    - print a fresh token for a guardian")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	settingsCmd := flag.NewFlagSet("settings", flag.ContinueOnError)
	settingsName := settingsCmd.String("name", "", "The school's name.")
	settingsLat := settingsCmd.Float64("lat", 0, "Latitude of the geofence center.")
	settingsLon := settingsCmd.Float64("lon", 0, "Longitude of the geofence center.")
	settingsRadius := settingsCmd.Float64("radius", 100, "Radius of the geofence, in meters.")
	settingsGeofence := settingsCmd.Bool("geofence", true, "Whether scans must happen inside the geofence.")

	addGuardianCmd := flag.NewFlagSet("addguardian", flag.ContinueOnError)
	addGuardianName := addGuardianCmd.String("name", "", "The guardian's full name.")
	addGuardianUname := addGuardianCmd.String("username", "", "The guardian's username.")
	addGuardianEmail := addGuardianCmd.String("email", "", "The guardian's email.")

	addChildCmd := flag.NewFlagSet("addchild", flag.ContinueOnError)
	addChildName := addChildCmd.String("name", "", "The child's name.")
	addChildGuardians := addChildCmd.String("guardians", "", "Comma separated IDs of the child's guardians.")

	issueCodeCmd := flag.NewFlagSet("issuecode", flag.ContinueOnError)
	issueCodeValue := issueCodeCmd.String("code", "", "The text encoded in the QR code.")
	issueCodeAction := issueCodeCmd.String("action", "", "CheckIn or CheckOut.")
	issueCodeTTL := issueCodeCmd.Duration("ttl", 0, "How long the code stays valid. 0: forever.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenGuardian := tokenCmd.String("guardian", "", "The guardian's ID.")

	for _, fs := range []*flag.FlagSet{settingsCmd, addGuardianCmd, addChildCmd, issueCodeCmd, tokenCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "settings":
		if err := settingsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *settingsName == "" {
			settingsCmd.Usage()
			return errHelp
		}
		return cli.updateSettings(attendance.SchoolSettings{
			SchoolName:      *settingsName,
			CenterLatitude:  *settingsLat,
			CenterLongitude: *settingsLon,
			RadiusMeters:    *settingsRadius,
			GeofenceEnabled: *settingsGeofence,
		})
	case "addguardian":
		if err := addGuardianCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addGuardianName == "" || *addGuardianUname == "" {
			addGuardianCmd.Usage()
			return errHelp
		}
		return cli.addGuardian(*addGuardianName, *addGuardianUname, *addGuardianEmail)
	case "addchild":
		if err := addChildCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addChildName == "" || *addChildGuardians == "" {
			addChildCmd.Usage()
			return errHelp
		}
		return cli.addChild(*addChildName, strings.Split(*addChildGuardians, ","))
	case "issuecode":
		if err := issueCodeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *issueCodeValue == "" || *issueCodeAction == "" {
			issueCodeCmd.Usage()
			return errHelp
		}
		return cli.issueCode(*issueCodeValue, attendance.ScanAction(*issueCodeAction), *issueCodeTTL)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenGuardian == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.printToken(*tokenGuardian)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) issueCode(value string, action attendance.ScanAction, ttl time.Duration) error {
	code, err := cli.svc.IssueCode(daycare.NewCode{Value: value, Action: action, TTL: ttl})
	if err != nil {
		return err
	}
	expires := "never"
	if code.ExpiresAt.Valid {
		expires = code.ExpiresAt.Time.Local().Format(time.RFC1123)
	}
	fmt.Fprintf(cli.out, "code %q issued for %s, expires: %s\n", code.Value, code.Action, expires)
	return nil
}
