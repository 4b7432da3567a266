package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/attendance"
	"github.com/trezcool/garderie/core/geo"
	"github.com/trezcool/garderie/core/location"
	"github.com/trezcool/garderie/services/location"
	"github.com/trezcool/garderie/services/qrscan"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp             = errors.New("help provided")
	errSelectionNeeded  = errors.New("several children are eligible: pass -children or -all")
	errScanTimedOut     = errors.New("no QR code was scanned in time")
	defaultScanDeadline = 2 * time.Minute
)

type commandLine struct {
	conf      *core.Config
	logger    core.Logger
	in        io.Reader // QR frames, one per line
	out       io.Writer
	newClient func(conf *core.Config) attendance.Client
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  status                                      - list your children and today's attendance")
	fmt.Fprintln(cli.out, "  settings -lat LAT -lon LON                  - show the school geofence and your distance to it")
	fmt.Fprintln(cli.out, "  scan -lat LAT -lon LON [-code CODE] [-children ID,ID|-all] [-notes NOTES]")
	fmt.Fprintln(cli.out, "                                              - check children in or out with a school QR code")
}

type scanOptions struct {
	lat, lon, accuracy float64
	code               string
	children           []string
	all                bool
	notes              string
	timeout            time.Duration
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	statusCmd := flag.NewFlagSet("status", flag.ContinueOnError)

	settingsCmd := flag.NewFlagSet("settings", flag.ContinueOnError)
	settingsLat := settingsCmd.Float64("lat", 0, "Your latitude.")
	settingsLon := settingsCmd.Float64("lon", 0, "Your longitude.")

	scanCmd := flag.NewFlagSet("scan", flag.ContinueOnError)
	scanLat := scanCmd.Float64("lat", 0, "Your latitude.")
	scanLon := scanCmd.Float64("lon", 0, "Your longitude.")
	scanAccuracy := scanCmd.Float64("accuracy", 10, "Accuracy of the position, in meters.")
	scanCode := scanCmd.String("code", "", "The QR code text. Read from stdin (one per line) when empty.")
	scanChildren := scanCmd.String("children", "", "Comma separated IDs of the children to check in/out.")
	scanAll := scanCmd.Bool("all", false, "Check in/out every eligible child.")
	scanNotes := scanCmd.String("notes", "", "Notes attached to the attendance records.")
	scanTimeout := scanCmd.Duration("timeout", defaultScanDeadline, "How long to wait for a QR code.")

	for _, fs := range []*flag.FlagSet{statusCmd, settingsCmd, scanCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "status":
		if err := statusCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.withClient(cli.status)
	case "settings":
		if err := settingsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if !isSet(settingsCmd, "lat") || !isSet(settingsCmd, "lon") {
			settingsCmd.Usage()
			return errHelp
		}
		return cli.withClient(func(client attendance.Client) error {
			return cli.settings(client, geo.Point{Latitude: *settingsLat, Longitude: *settingsLon})
		})
	case "scan":
		if err := scanCmd.Parse(args[2:]); err != nil {
			return err
		}
		if !isSet(scanCmd, "lat") || !isSet(scanCmd, "lon") {
			scanCmd.Usage()
			return errHelp
		}
		opts := scanOptions{
			lat:      *scanLat,
			lon:      *scanLon,
			accuracy: *scanAccuracy,
			code:     core.CleanString(*scanCode),
			children: splitIDs(*scanChildren),
			all:      *scanAll,
			notes:    core.CleanString(*scanNotes),
			timeout:  *scanTimeout,
		}
		return cli.withClient(func(client attendance.Client) error {
			return cli.scan(client, opts)
		})
	default:
		cli.printUsage()
		return errHelp
	}
}

// withClient prompts for the API token when none is configured.
func (cli *commandLine) withClient(fn func(client attendance.Client) error) error {
	conf := *cli.conf
	if conf.API.Token == "" {
		fmt.Fprint(cli.out, "Enter API token:")
		token, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(token) == 0 {
			return errHelp
		}
		conf.API.Token = strings.TrimSpace(string(token))
	}
	return fn(cli.newClient(&conf))
}

func (cli *commandLine) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), cli.conf.API.Timeout)
}

func (cli *commandLine) status(client attendance.Client) error {
	ctx, cancel := cli.context()
	defer cancel()

	roster, err := client.MyChildrenStatus(ctx)
	if err != nil {
		return errors.Wrap(err, "loading children")
	}
	cli.printRoster(roster)
	return nil
}

func (cli *commandLine) settings(client attendance.Client, pos geo.Point) error {
	ctx, cancel := cli.context()
	defer cancel()

	settings, err := client.SchoolSettings(ctx)
	if err != nil {
		return errors.Wrap(err, "loading school settings")
	}
	fmt.Fprintf(cli.out, "School:   %s\n", settings.SchoolName)
	fmt.Fprintf(cli.out, "Center:   %.6f, %.6f\n", settings.CenterLatitude, settings.CenterLongitude)
	fmt.Fprintf(cli.out, "Radius:   %.0fm\n", settings.RadiusMeters)
	if !settings.GeofenceEnabled {
		fmt.Fprintln(cli.out, "Geofence: disabled")
		return nil
	}
	res := geo.Evaluate(pos, settings.Geofence())
	verdict := "out of range"
	if res.WithinRange {
		verdict = "within range"
	}
	fmt.Fprintf(cli.out, "Geofence: %s (%.0fm away)\n", verdict, res.DistanceMeters)
	return nil
}

func (cli *commandLine) scan(client attendance.Client, opts scanOptions) error {
	src := cli.in
	if opts.code != "" {
		src = strings.NewReader(opts.code + "\n")
	}

	changed := make(chan struct{}, 1)
	sess := attendance.NewSession(attendance.Deps{
		Client:   client,
		Platform: locationsvc.NewFixedPlatform(opts.lat, opts.lon, opts.accuracy),
		Scanner:  qrscansvc.NewLineScanner(src),
		Logger:   cli.logger,
	}, attendance.SessionConfig{
		Location: location.Options{
			Timeout:      cli.conf.Location.Timeout,
			HighAccuracy: cli.conf.Location.HighAccuracy,
			MaximumAge:   cli.conf.Location.MaximumAge,
		},
		PositionTTL:    cli.conf.Location.PositionTTL,
		RequestTimeout: cli.conf.API.Timeout,
		Notes:          opts.notes,
		OnChange: func(attendance.Snapshot) {
			select {
			case changed <- struct{}{}:
			default:
			}
		},
	})
	defer sess.Wait()

	ctx, cancel := cli.context()
	defer cancel()
	if err := sess.Load(ctx); err != nil {
		return err
	}
	if _, err := sess.Locate(ctx); err != nil {
		return errors.Wrap(err, "locating device")
	}
	if err := sess.StartScan(); err != nil {
		return err
	}
	if opts.code == "" {
		fmt.Fprintln(cli.out, "Scan the school QR code...")
	}

	// Idle again means the capture source ran dry
	settled := func(s attendance.State) bool { return s == attendance.Idle || s == attendance.Selecting || s.IsTerminal() }
	if err := awaitState(sess, changed, opts.timeout, settled); err != nil {
		sess.Reset() // stops the capture
		return err
	}
	if snap := sess.Snapshot(); snap.State == attendance.Idle {
		sess.Reset()
		return snap.Err
	}

	if sess.State() == attendance.Selecting {
		if err := cli.choose(sess, opts); err != nil {
			return err
		}
		if err := sess.Confirm(); err != nil {
			return err
		}
		if err := awaitState(sess, changed, cli.conf.API.Timeout, attendance.State.IsTerminal); err != nil {
			return err
		}
	}
	sess.Wait()

	snap := sess.Snapshot()
	if snap.State == attendance.Error {
		return snap.Err
	}
	cli.printResult(snap)
	return nil
}

// choose applies the -all or -children selection.
func (cli *commandLine) choose(sess *attendance.Session, opts scanOptions) error {
	snap := sess.Snapshot()
	switch {
	case opts.all:
		return sess.SelectAll()
	case len(opts.children) > 0:
		for _, id := range opts.children {
			if err := sess.Select(id); err != nil {
				return errors.Wrapf(err, "selecting %q", id)
			}
		}
		return nil
	default:
		fmt.Fprintf(cli.out, "Children eligible for %s:\n", actionLabel(snap.Action))
		cli.printRoster(snap.Eligible)
		return errSelectionNeeded
	}
}

// awaitState blocks until done reports true for the session state, or d elapses.
func awaitState(sess *attendance.Session, changed <-chan struct{}, d time.Duration, done func(attendance.State) bool) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for !done(sess.State()) {
		select {
		case <-changed:
		case <-timer.C:
			if sess.State() == attendance.Scanning {
				return errScanTimedOut
			}
			return errors.Errorf("timed out while %s", sess.State())
		}
	}
	return nil
}

func (cli *commandLine) printRoster(roster []attendance.ChildStatus) {
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCHECKED IN\tCHECKED OUT")
	for _, c := range roster {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ChildID, c.Name, clock(c.IsCheckedIn, c.CheckInTime.Time), clock(c.IsCheckedOut, c.CheckOutTime.Time))
	}
	_ = w.Flush()
}

func (cli *commandLine) printResult(snap attendance.Snapshot) {
	if snap.Result == nil {
		return
	}
	fmt.Fprintln(cli.out, snap.Result.Message)
	names := make(map[string]string, len(snap.Roster))
	for _, c := range snap.Roster {
		names[c.ChildID] = c.Name
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	for _, item := range snap.Result.Results {
		mark := "ok"
		if !item.Success {
			mark = "FAILED"
		}
		name := names[item.ChildID]
		if name == "" {
			name = item.ChildID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, mark, item.Message)
	}
	_ = w.Flush()
}

func actionLabel(a attendance.ScanAction) string {
	if a == attendance.CheckOut {
		return "check out"
	}
	return "check in"
}

func clock(done bool, at time.Time) string {
	if !done {
		return "-"
	}
	if at.IsZero() {
		return "yes"
	}
	return at.Local().Format("15:04")
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func isSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
