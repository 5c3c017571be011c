// Package config maps viper settings onto the STAR client and the store.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/starlight-qa/starlight/pkg/star"
	"github.com/tidwall/gjson"
)

const (
	KeyURL              = "star.url"
	KeyUserAgent        = "star.user_agent"
	KeySID              = "star.sid"
	KeyOper             = "star.oper"
	KeyDevicesOperation = "star.devices_operation"
	KeyReportOperation  = "star.report_operation"
	KeyUTCOffsetHours   = "star.utc_offset_hours"
	KeyRetries          = "star.retries"
	KeyTimeoutSeconds   = "star.timeout_seconds"
	KeyEnvFile          = "star.envfile"
	KeyDBPath           = "db.path"
)

// SetDefaults registers every key with its default so a freshly written
// config file lists them all.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyURL, "")
	v.SetDefault(KeyUserAgent, star.DefaultUserAgent)
	v.SetDefault(KeySID, "")
	v.SetDefault(KeyOper, star.DefaultOper)
	v.SetDefault(KeyDevicesOperation, star.DefaultDevicesOperation)
	v.SetDefault(KeyReportOperation, star.DefaultReportOperation)
	v.SetDefault(KeyUTCOffsetHours, -6)
	v.SetDefault(KeyRetries, 3)
	v.SetDefault(KeyTimeoutSeconds, 120)
	v.SetDefault(KeyEnvFile, "")
	v.SetDefault(KeyDBPath, "")
}

// EnvFile is the legacy JSON credentials file:
//
//	{"STAR_URL": "...", "STAR_USER_AGENT": "...", "SID": "..."}
type EnvFile struct {
	URL       string
	UserAgent string
	SID       string
}

func ReadEnvFile(path string) (EnvFile, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return EnvFile{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return EnvFile{}, fmt.Errorf("reading env file: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return EnvFile{}, fmt.Errorf("env file %s is not valid JSON", path)
	}
	res := gjson.GetManyBytes(raw, "STAR_URL", "STAR_USER_AGENT", "SID")
	return EnvFile{
		URL:       res[0].String(),
		UserAgent: res[1].String(),
		SID:       res[2].String(),
	}, nil
}

// ApplyEnvFile loads the legacy credentials file named by star.envfile, if
// any. Its values only replace defaults: the config file, environment and
// flags still win.
func ApplyEnvFile(v *viper.Viper) error {
	path := v.GetString(KeyEnvFile)
	if path == "" {
		return nil
	}
	env, err := ReadEnvFile(path)
	if err != nil {
		return err
	}
	for key, value := range map[string]string{
		KeyURL:       env.URL,
		KeyUserAgent: env.UserAgent,
		KeySID:       env.SID,
	} {
		if value != "" {
			v.SetDefault(key, value)
		}
	}
	return nil
}

// Star builds the STAR client configuration. proxy may be empty.
func Star(v *viper.Viper, proxy string) star.Config {
	return star.Config{
		URL:              v.GetString(KeyURL),
		UserAgent:        v.GetString(KeyUserAgent),
		SID:              v.GetString(KeySID),
		Oper:             v.GetString(KeyOper),
		DevicesOperation: v.GetString(KeyDevicesOperation),
		ReportOperation:  v.GetString(KeyReportOperation),
		UTCOffset:        time.Duration(v.GetFloat64(KeyUTCOffsetHours) * float64(time.Hour)),
		Retries:          v.GetInt(KeyRetries),
		Timeout:          time.Duration(v.GetInt(KeyTimeoutSeconds)) * time.Second,
		Proxy:            proxy,
	}
}

// DBPath returns the configured store path, "" for the default one.
func DBPath(v *viper.Viper) (string, error) {
	return homedir.Expand(v.GetString(KeyDBPath))
}
