package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/attendance"
	"github.com/trezcool/garderie/tests"
)

var conf = &core.Config{
	TestMode: true,
	Server:   core.ServerConfig{SecretKey: "s3cr3t", JWTExpirationDelta: time.Hour},
}

func setup(t *testing.T) (*commandLine, *testutil.Fixture, *bytes.Buffer) {
	f := testutil.NewFixture(t)
	out := new(bytes.Buffer)
	return &commandLine{conf: conf, svc: f.Svc, out: out}, f, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string
}

func runCLITests(t *testing.T, cli *commandLine, out *bytes.Buffer, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			} else if tt.wantErr != nil || tt.wantErrStr != "" {
				t.Errorf("cli.run() error = nil, want an error")
			}
			if tt.wantOut != "" {
				assert.Contains(t, out.String(), tt.wantOut)
			}
		})
	}
}

func Test_commandLine_run(t *testing.T) {
	cli, _, out := setup(t)
	runCLITests(t, cli, out, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp, wantOut: "Usage:"},
		{name: "settings: no args", args: []string{"settings"}, wantErr: errHelp},
		{name: "addguardian: no username", args: []string{"addguardian", "-name", "Jean"}, wantErr: errHelp},
		{name: "addchild: no guardians", args: []string{"addchild", "-name", "Zola"}, wantErr: errHelp},
		{name: "issuecode: no action", args: []string{"issuecode", "-code", "X"}, wantErr: errHelp},
		{name: "token: no args", args: []string{"token"}, wantErr: errHelp},
	})
}

func Test_commandLine_settings(t *testing.T) {
	cli, f, out := setup(t)
	runCLITests(t, cli, out, []cliTest{
		{
			name: "bad radius", args: []string{"settings", "-name", "Les Petits Lions", "-lat", "-4.3", "-lon", "15.3", "-radius", "-5"},
			wantErrStr: "radiusMeters: radiusMeters must be 0 or greater",
		},
		{
			name: "geofence on", args: []string{"settings", "-name", " Les Petits Lions ", "-lat", "-4.3", "-lon", "15.3", "-radius", "120"},
			wantOut: "Les Petits Lions saved, geofence: 120m around -4.300000, 15.300000",
		},
		{
			name: "geofence off", args: []string{"settings", "-name", "Les Petits Lions", "-lat", "-4.3", "-lon", "15.3", "-geofence=false"},
			wantOut: "geofence: disabled",
		},
	})

	settings, err := f.Svc.Settings()
	require.NoError(t, err)
	assert.False(t, settings.GeofenceEnabled)
	assert.Equal(t, 100.0, settings.RadiusMeters)
}

func Test_commandLine_guardiansAndChildren(t *testing.T) {
	cli, f, out := setup(t)

	require.NoError(t, cli.run([]string{"admin", "addguardian", "-name", "Jean Lumbu", "-username", " Jean ", "-email", "jean@test.cd"}))
	assert.Contains(t, out.String(), "guardian jean created: ")
	assert.Contains(t, out.String(), "token: ")
	id := strings.TrimSpace(strings.SplitN(strings.SplitN(out.String(), "created: ", 2)[1], "\n", 2)[0])

	runCLITests(t, cli, out, []cliTest{
		{name: "duplicate username", args: []string{"addguardian", "-name", "Jean Two", "-username", "jean"}, wantErrStr: "guardian: duplicate key"},
		{name: "unknown guardian", args: []string{"addchild", "-name", "Zola", "-guardians", "lol"}, wantErrStr: "guardianIds: unknown guardian lol"},
		{name: "child", args: []string{"addchild", "-name", "Zola", "-guardians", id + ", " + f.Marie.ID}, wantOut: "child Zola created: "},
		{name: "token", args: []string{"token", "-guardian", f.Paul.ID}, wantOut: "token: "},
		{name: "token: unknown guardian", args: []string{"token", "-guardian", "lol"}, wantErrStr: "not found"},
	})

	statuses, err := f.Svc.ChildrenStatus(id)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "Zola", statuses[0].Name)

	statuses, err = f.Svc.ChildrenStatus(f.Marie.ID)
	require.NoError(t, err)
	assert.Len(t, statuses, 3)
}

func Test_commandLine_issueCode(t *testing.T) {
	cli, f, out := setup(t)
	runCLITests(t, cli, out, []cliTest{
		{name: "bad action", args: []string{"issuecode", "-code", "LPL-1", "-action", "Wave"}, wantErrStr: "action: action must be one of [CheckIn CheckOut]"},
		{name: "duplicate", args: []string{"issuecode", "-code", "IN-1", "-action", "CheckIn"}, wantErrStr: "code: duplicate key"},
		{name: "forever", args: []string{"issuecode", "-code", "LPL-1", "-action", "CheckIn"}, wantOut: `code "LPL-1" issued for CheckIn, expires: never`},
		{name: "daily", args: []string{"issuecode", "-code", "LPL-2", "-action", "CheckOut", "-ttl", "24h"}, wantOut: `code "LPL-2" issued for CheckOut, expires: `},
	})

	val, err := f.Svc.ValidateCode("LPL-2")
	require.NoError(t, err)
	assert.Equal(t, attendance.CodeValidation{IsValid: true, Type: attendance.CheckOut}, val)
}
