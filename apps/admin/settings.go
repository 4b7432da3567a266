package main

import (
	"fmt"

	"github.com/trezcool/garderie/core/attendance"
)

func (cli *commandLine) updateSettings(settings attendance.SchoolSettings) error {
	settings, err := cli.svc.UpdateSettings(settings)
	if err != nil {
		return err
	}
	geofence := "disabled"
	if settings.GeofenceEnabled {
		geofence = fmt.Sprintf("%.0fm around %.6f, %.6f", settings.RadiusMeters, settings.CenterLatitude, settings.CenterLongitude)
	}
	fmt.Fprintf(cli.out, "%s saved, geofence: %s\n", settings.SchoolName, geofence)
	return nil
}
