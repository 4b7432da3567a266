package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env          string // DEV (local; default), TEST, QA, PROD
		Debug        bool
		TestMode     bool
		AppName      string
		Build        string
		RollbarToken string
		DataFile     string // JSON file backing the sandbox store; empty: memory only

		API      APIConfig
		Location LocationConfig
		Server   ServerConfig
	}

	// APIConfig configures the attendance REST client.
	APIConfig struct {
		BaseURL string
		Token   string
		Timeout time.Duration
	}

	LocationConfig struct {
		Timeout      time.Duration
		HighAccuracy bool
		MaximumAge   time.Duration
		PositionTTL  time.Duration // how long an acquired position stays usable within a session
	}

	// ServerConfig configures the sandbox backend.
	ServerConfig struct {
		Host               string
		Address            string
		SecretKey          string
		JWTExpirationDelta time.Duration
		DisableReqLogs     bool
	}
)

func newViper(env string) *viper.Viper {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Garderie")
	v.SetDefault("build", "dev")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("dataFile", "")

	v.SetDefault("apiBaseURL", "http://localhost:8000")
	v.SetDefault("apiToken", "")
	v.SetDefault("apiTimeout", 15*time.Second)

	v.SetDefault("locationTimeout", 10*time.Second)
	v.SetDefault("locationHighAccuracy", true)
	v.SetDefault("locationMaximumAge", time.Duration(0))
	v.SetDefault("locationPositionTTL", 5*time.Minute)

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("secretKey", "k1d5-gard3rie)qr$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("disableReqLogs", false)

	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.AutomaticEnv()
	return v
}

// NewConfig loads the configuration for the current ENV.
// Values come from (in order of precedence) environment variables prefixed with ENV
// (eg. DEV_APIBASEURL), then `config/.env.<env>` under the project root, then defaults.
func NewConfig() (*Config, error) {
	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// load .env if it exists (ignore if it does not)
	if root, err := ProjectRoot(); err == nil {
		dotEnvPath := filepath.Join(root, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
		}
	}

	v := newViper(env)
	conf := &Config{
		Env:          env,
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		Build:        v.GetString("build"),
		RollbarToken: v.GetString("rollbarToken"),
		DataFile:     v.GetString("dataFile"),
		API: APIConfig{
			BaseURL: strings.TrimRight(v.GetString("apiBaseURL"), "/"),
			Token:   v.GetString("apiToken"),
			Timeout: v.GetDuration("apiTimeout"),
		},
		Location: LocationConfig{
			Timeout:      v.GetDuration("locationTimeout"),
			HighAccuracy: v.GetBool("locationHighAccuracy"),
			MaximumAge:   v.GetDuration("locationMaximumAge"),
			PositionTTL:  v.GetDuration("locationPositionTTL"),
		},
		Server: ServerConfig{
			Host:               v.GetString("serverHost"),
			Address:            v.GetString("serverAddress"),
			SecretKey:          v.GetString("secretKey"),
			JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
			DisableReqLogs:     v.GetBool("disableReqLogs"),
		},
	}
	if conf.API.Timeout <= 0 {
		return nil, errors.New("apiTimeout must be positive")
	}
	if conf.Location.Timeout <= 0 {
		return nil, errors.New("locationTimeout must be positive")
	}
	return conf, nil
}
