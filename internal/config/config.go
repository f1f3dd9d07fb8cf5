package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/quarterdeck.db"

	// Operational calendar
	Timezone     string // IANA name, e.g. "America/Winnipeg"
	RolloverHour int    // local hour at which the operational day rolls over

	// Duty watch
	WatchAlertHour    int // local time of the nightly watch check
	WatchAlertMinute  int
	RequiredPositions []string
	LeaderPositions   []string

	// Missed-reset catch-up scan interval in minutes (default 60)
	CatchupIntervalMinutes int
}

func FromEnv() Config {
	addr := getenvDefault("QUARTERDECK_HTTP_ADDR", ":8080")

	env := strings.ToLower(getenvDefault("QUARTERDECK_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	dbPath := getenvDefault("QUARTERDECK_DB_PATH", "./data/quarterdeck.db")

	timezone := getenvDefault("QUARTERDECK_TIMEZONE", "America/Winnipeg")
	rolloverHour := getenvInt("QUARTERDECK_ROLLOVER_HOUR", 3)

	watchHour, watchMinute := parseClock(getenvDefault("QUARTERDECK_WATCH_ALERT_TIME", "19:00"), 19, 0)

	required := splitCSV(os.Getenv("QUARTERDECK_WATCH_POSITIONS"))
	leaders := splitCSV(os.Getenv("QUARTERDECK_WATCH_LEADERS"))

	catchup := getenvInt("QUARTERDECK_CATCHUP_INTERVAL_MINUTES", 60)

	return Config{
		HTTPAddr: addr,
		Env:      env,
		DBPath:   dbPath,

		Timezone:     timezone,
		RolloverHour: rolloverHour,

		WatchAlertHour:    watchHour,
		WatchAlertMinute:  watchMinute,
		RequiredPositions: required,
		LeaderPositions:   leaders,

		CatchupIntervalMinutes: catchup,
	}
}

// parseClock parses "HH:MM"; malformed input falls back to the defaults.
func parseClock(v string, defHour, defMinute int) (int, int) {
	parts := strings.SplitN(strings.TrimSpace(v), ":", 2)
	if len(parts) != 2 {
		return defHour, defMinute
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return defHour, defMinute
	}
	return h, m
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
